package watcher

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/ganot/simcatalog/internal/converter"
	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/ganot/simcatalog/internal/notify"
)

// Outcome is the result of dispatching one path.
type Outcome string

const (
	OutcomeSkipped     Outcome = "skipped"
	OutcomeReady       Outcome = "ready"
	OutcomeQuarantined Outcome = "quarantined"
	OutcomeAbandoned   Outcome = "abandoned"
	OutcomeDeferred    Outcome = "deferred"
	OutcomeError       Outcome = "error"
)

// process takes one stabilized path through the catalog lifecycle. The
// catalog CAS decides which worker owns a conversion; losers return Skipped.
func (w *Watcher) process(ctx context.Context, path string) Outcome {
	info, err := os.Stat(path)
	if err != nil {
		w.logger.Debug("dispatched file disappeared", "path", path, "error", err)
		return OutcomeSkipped
	}
	identity := simulation.DeriveIdentity(path, info.ModTime())
	logger := w.logger.With("id", identity.ID, "path", path)

	sim, err := w.catalog.Get(ctx, identity.ID)
	if errors.Is(err, simulation.ErrSimulationNotFound) {
		sim, _, err = w.catalog.Register(ctx, simulation.RegisterRequest{
			ID:         identity.ID,
			Name:       identity.Name,
			SourcePath: path,
		})
	}
	if err != nil {
		logger.Error("catalog lookup failed", "error", err)
		return OutcomeError
	}

	from := sim.Status
	switch sim.Status {
	case simulation.StatusReady, simulation.StatusQuarantined, simulation.StatusConverting:
		logger.Debug("already cataloged, skipping", "status", sim.Status)
		return OutcomeSkipped
	case simulation.StatusFailed:
		if sim.Attempts >= w.cfg.MaxAttempts {
			return w.quarantineFailed(ctx, sim.ID, path, errorDetail(sim))
		}
		logger.Info("retrying failed simulation", "attempts", sim.Attempts)
	}

	if _, err := w.catalog.Transition(ctx, sim.ID, from, simulation.StatusConverting, simulation.TransitionDetail{}); err != nil {
		if errors.Is(err, simulation.ErrConflict) {
			logger.Debug("lost dispatch race")
			return OutcomeSkipped
		}
		logger.Error("failed to start conversion", "error", err)
		return OutcomeError
	}

	return w.convert(ctx, sim.ID, path, sim.Attempts)
}

// convert runs the retry loop for a record this worker moved to CONVERTING.
func (w *Watcher) convert(ctx context.Context, id, path string, attempts int) Outcome {
	logger := w.logger.With("id", id, "path", path)
	for {
		attempts++
		if err := w.catalog.RecordAttempt(ctx, id, attempts, ""); err != nil {
			logger.Error("failed to record attempt", "error", err)
			return OutcomeError
		}

		cctx, cancel := context.WithTimeout(ctx, w.cfg.ConvertTimeout)
		res, err := w.conv.Convert(cctx, path, id)
		cancel()

		if err == nil {
			return w.finish(ctx, id, res)
		}
		if ctx.Err() != nil {
			logger.Warn("conversion abandoned on shutdown", "error", err)
			return OutcomeAbandoned
		}
		if errors.Is(err, converter.ErrStorageFailure) {
			return w.deferStorage(ctx, id, path, attempts, err)
		}
		if !converter.Transient(err) || attempts >= w.cfg.MaxAttempts {
			return w.fail(ctx, id, path, err)
		}

		wait := w.cfg.backoff(attempts)
		logger.Warn("conversion failed, retrying", "attempt", attempts, "backoff", wait, "error", err)
		if err := w.catalog.RecordAttempt(ctx, id, attempts, err.Error()); err != nil {
			logger.Error("failed to record attempt", "error", err)
			return OutcomeError
		}
		if err := w.sleep(ctx, wait); err != nil {
			return OutcomeAbandoned
		}
	}
}

func (w *Watcher) finish(ctx context.Context, id string, res *converter.Result) Outcome {
	logger := w.logger.With("id", id)
	_, err := w.catalog.Transition(ctx, id, simulation.StatusConverting, simulation.StatusReady,
		simulation.TransitionDetail{Dataset: res.DatasetInfo()})
	if err != nil {
		if errors.Is(err, simulation.ErrConflict) {
			logger.Warn("simulation finalized elsewhere")
			return OutcomeSkipped
		}
		logger.Error("failed to mark simulation ready", "error", err)
		return OutcomeError
	}

	now := time.Now().UTC()
	w.mu.Lock()
	w.stats.Processed++
	w.stats.LastProcessed = &now
	w.stats.LastStorageError = ""
	w.stats.LastStorageErrorAt = nil
	w.mu.Unlock()

	logger.Info("simulation ingested", "rows", len(res.Table.Rows), "variables", len(res.Table.Variables))
	w.emit(notify.Event{Type: notify.TypeIngested, SimulationID: id})

	if w.mirror != nil {
		if err := w.mirror.Mirror(ctx, id, res.DatasetPath, res.MetadataPath); err != nil {
			logger.Warn("dataset mirror failed", "error", err)
		}
	}
	return OutcomeReady
}

// deferStorage parks a record whose dataset could not be written. The source
// stays in the input directory and the attempt is not charged, so the next
// rescan retries it once storage is back.
func (w *Watcher) deferStorage(ctx context.Context, id, path string, attempts int, cause error) Outcome {
	detail := cause.Error()
	now := time.Now().UTC()
	w.mu.Lock()
	w.stats.StorageFailures++
	w.stats.LastStorageError = detail
	w.stats.LastStorageErrorAt = &now
	w.mu.Unlock()
	w.logger.Error("dataset storage failed, source kept for retry", "id", id, "path", path, "error", cause)

	if err := w.catalog.RecordAttempt(ctx, id, attempts-1, detail); err != nil {
		w.logger.Error("failed to record attempt", "id", id, "error", err)
		return OutcomeError
	}
	_, err := w.catalog.Transition(ctx, id, simulation.StatusConverting, simulation.StatusFailed,
		simulation.TransitionDetail{ErrorDetail: detail})
	if err != nil {
		if errors.Is(err, simulation.ErrConflict) {
			return OutcomeSkipped
		}
		w.logger.Error("failed to mark simulation failed", "id", id, "error", err)
		return OutcomeError
	}
	w.emit(notify.Event{Type: notify.TypeFailed, SimulationID: id, Detail: detail})
	return OutcomeDeferred
}

// fail records the failure and quarantines the source.
func (w *Watcher) fail(ctx context.Context, id, path string, cause error) Outcome {
	detail := cause.Error()
	_, err := w.catalog.Transition(ctx, id, simulation.StatusConverting, simulation.StatusFailed,
		simulation.TransitionDetail{ErrorDetail: detail})
	if err != nil {
		if errors.Is(err, simulation.ErrConflict) {
			return OutcomeSkipped
		}
		w.logger.Error("failed to mark simulation failed", "id", id, "error", err)
		return OutcomeError
	}

	w.mu.Lock()
	w.stats.Failed++
	w.mu.Unlock()
	w.logger.Warn("simulation conversion failed", "id", id, "path", path, "error", cause)
	w.emit(notify.Event{Type: notify.TypeFailed, SimulationID: id, Detail: detail})

	return w.quarantineFailed(ctx, id, path, detail)
}

// quarantineFailed moves the source aside and completes FAILED -> QUARANTINED.
func (w *Watcher) quarantineFailed(ctx context.Context, id, path, detail string) Outcome {
	dest, err := moveToQuarantine(path, w.cfg.QuarantineDir)
	if err != nil {
		w.logger.Error("failed to move file to quarantine", "id", id, "path", path, "error", err)
	}

	_, err = w.catalog.Transition(ctx, id, simulation.StatusFailed, simulation.StatusQuarantined,
		simulation.TransitionDetail{QuarantinePath: dest})
	if err != nil {
		if errors.Is(err, simulation.ErrConflict) {
			return OutcomeSkipped
		}
		w.logger.Error("failed to mark simulation quarantined", "id", id, "error", err)
		return OutcomeError
	}

	w.mu.Lock()
	w.stats.Quarantined++
	w.mu.Unlock()
	w.logger.Warn("simulation quarantined", "id", id, "quarantine_path", dest)
	w.emit(notify.Event{Type: notify.TypeQuarantined, SimulationID: id, Detail: detail})
	return OutcomeQuarantined
}

func (w *Watcher) emit(ev notify.Event) {
	if w.notifier != nil {
		w.notifier.Notify(ev)
	}
}

func errorDetail(sim *simulation.Simulation) string {
	if sim.ErrorDetail != nil {
		return *sim.ErrorDetail
	}
	return "retry budget exhausted"
}
