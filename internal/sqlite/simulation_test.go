package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/ganot/simcatalog/internal/repository"
	"github.com/stretchr/testify/require"
)

func createSimulation(t *testing.T, repo *SimulationRepository, id string, created time.Time) *simulation.Simulation {
	t.Helper()
	sim := &simulation.Simulation{
		ID:         id,
		Name:       id,
		SourcePath: "/in/" + id + ".csv",
		Status:     simulation.StatusPending,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	require.NoError(t, repo.Create(context.Background(), sim))
	return sim
}

func readyDetail() simulation.TransitionDetail {
	return simulation.TransitionDetail{Dataset: &simulation.DatasetInfo{
		DatasetPath:  "/out/s1.csv",
		MetadataPath: "/out/s1.metadata.json",
		Variables: []simulation.Variable{
			{Name: "temperature", Kind: simulation.KindFloat},
			{Name: "pressure", Kind: simulation.KindFloat},
		},
		TimeStart:   0,
		TimeEnd:     999,
		RowCount:    1000,
		ConvertedAt: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}}
}

func TestSimulationRepository_CreateGet(t *testing.T) {
	repo := NewSimulationRepository(NewTestDB(t))
	ctx := context.Background()
	created := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	createSimulation(t, repo, "s1", created)

	loaded, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", loaded.ID)
	require.Equal(t, simulation.StatusPending, loaded.Status)
	require.Equal(t, created, loaded.CreatedAt)
	require.Empty(t, loaded.Variables)
	require.Nil(t, loaded.ErrorDetail)
	require.Nil(t, loaded.TimeStart)

	bySource, err := repo.GetBySource(ctx, "/in/s1.csv")
	require.NoError(t, err)
	require.Equal(t, "s1", bySource.ID)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetBySource(ctx, "/in/missing.csv")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSimulationRepository_CreateDuplicate(t *testing.T) {
	repo := NewSimulationRepository(NewTestDB(t))
	createSimulation(t, repo, "s1", time.Now())

	err := repo.Create(context.Background(), &simulation.Simulation{
		ID: "s1", Name: "s1", SourcePath: "/in/other.csv",
		Status: simulation.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestSimulationRepository_TransitionLifecycle(t *testing.T) {
	repo := NewSimulationRepository(NewTestDB(t))
	ctx := context.Background()
	createSimulation(t, repo, "s1", time.Now())
	now := time.Now()

	require.NoError(t, repo.Transition(ctx, "s1", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{}, now))
	require.NoError(t, repo.Transition(ctx, "s1", simulation.StatusConverting, simulation.StatusReady, readyDetail(), now))

	loaded, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, simulation.StatusReady, loaded.Status)
	require.Equal(t, "/out/s1.csv", loaded.DatasetPath)
	require.Equal(t, []string{"temperature", "pressure"}, loaded.VariableNames())
	require.Equal(t, 0.0, *loaded.TimeStart)
	require.Equal(t, 999.0, *loaded.TimeEnd)
	require.Equal(t, int64(1000), loaded.RowCount)
	require.NotNil(t, loaded.ConvertedAt)
	require.Nil(t, loaded.ErrorDetail)
}

func TestSimulationRepository_TransitionConflict(t *testing.T) {
	repo := NewSimulationRepository(NewTestDB(t))
	ctx := context.Background()
	createSimulation(t, repo, "s1", time.Now())

	err := repo.Transition(ctx, "s1", simulation.StatusConverting, simulation.StatusReady, readyDetail(), time.Now())
	require.ErrorIs(t, err, repository.ErrConflict)

	loaded, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, simulation.StatusPending, loaded.Status)
	require.Empty(t, loaded.DatasetPath)

	err = repo.Transition(ctx, "missing", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{}, time.Now())
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSimulationRepository_ConcurrentTransitionHasOneWinner(t *testing.T) {
	repo := NewSimulationRepository(NewTestDB(t))
	ctx := context.Background()
	createSimulation(t, repo, "s1", time.Now())

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Transition(ctx, "s1", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{}, time.Now())
		}()
	}
	wg.Wait()
	close(errs)

	wins, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case err == repository.ErrConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, workers-1, conflicts)
}

func TestSimulationRepository_FailureKeepsDetailThroughQuarantine(t *testing.T) {
	repo := NewSimulationRepository(NewTestDB(t))
	ctx := context.Background()
	createSimulation(t, repo, "s1", time.Now())
	now := time.Now()

	require.NoError(t, repo.Transition(ctx, "s1", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{}, now))
	require.NoError(t, repo.UpdateAttempts(ctx, "s1", 2, "file locked", now))
	require.NoError(t, repo.Transition(ctx, "s1", simulation.StatusConverting, simulation.StatusFailed,
		simulation.TransitionDetail{ErrorDetail: "empty result"}, now))
	require.NoError(t, repo.Transition(ctx, "s1", simulation.StatusFailed, simulation.StatusQuarantined,
		simulation.TransitionDetail{QuarantinePath: "/quarantine/s1.csv"}, now))

	loaded, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, simulation.StatusQuarantined, loaded.Status)
	require.Equal(t, "empty result", *loaded.ErrorDetail)
	require.Equal(t, "/quarantine/s1.csv", loaded.QuarantinePath)
	require.Equal(t, 2, loaded.Attempts)
	require.Equal(t, "file locked", *loaded.LastError)
}

func TestSimulationRepository_RecoverInterrupted(t *testing.T) {
	repo := NewSimulationRepository(NewTestDB(t))
	ctx := context.Background()
	createSimulation(t, repo, "a", time.Now())
	createSimulation(t, repo, "b", time.Now())
	createSimulation(t, repo, "c", time.Now())
	now := time.Now()
	require.NoError(t, repo.Transition(ctx, "a", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{}, now))
	require.NoError(t, repo.Transition(ctx, "b", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{}, now))

	ids, err := repo.RecoverInterrupted(ctx, simulation.InterruptedDetail, now)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids)

	for _, id := range ids {
		loaded, err := repo.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, simulation.StatusFailed, loaded.Status)
		require.Equal(t, simulation.InterruptedDetail, *loaded.ErrorDetail)
	}
	untouched, err := repo.Get(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, simulation.StatusPending, untouched.Status)
}

func TestSimulationRepository_ListFilters(t *testing.T) {
	repo := NewSimulationRepository(NewTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	createSimulation(t, repo, "jan", base)
	createSimulation(t, repo, "feb", base.AddDate(0, 1, 0))
	createSimulation(t, repo, "mar", base.AddDate(0, 2, 0))
	require.NoError(t, repo.Transition(ctx, "feb", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{}, time.Now()))

	all, err := repo.List(ctx, simulation.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"mar", "feb", "jan"}, ids(all))

	converting, err := repo.List(ctx, simulation.ListOptions{Statuses: []simulation.Status{simulation.StatusConverting}})
	require.NoError(t, err)
	require.Equal(t, []string{"feb"}, ids(converting))

	from := base.AddDate(0, 0, 15)
	to := base.AddDate(0, 1, 15)
	ranged, err := repo.List(ctx, simulation.ListOptions{CreatedFrom: &from, CreatedTo: &to})
	require.NoError(t, err)
	require.Equal(t, []string{"feb"}, ids(ranged))

	paged, err := repo.List(ctx, simulation.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"feb"}, ids(paged))

	named, err := repo.List(ctx, simulation.ListOptions{NamePattern: "ma"})
	require.NoError(t, err)
	require.Equal(t, []string{"mar"}, ids(named))
}

func TestSimulationRepository_CountByStatus(t *testing.T) {
	repo := NewSimulationRepository(NewTestDB(t))
	ctx := context.Background()
	createSimulation(t, repo, "a", time.Now())
	createSimulation(t, repo, "b", time.Now())
	require.NoError(t, repo.Transition(ctx, "a", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{}, time.Now()))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts[simulation.StatusPending])
	require.Equal(t, 1, counts[simulation.StatusConverting])
	require.NoError(t, repo.Ping(ctx))
}

func TestSimulationRepository_ClosedDatabaseIsStorageFailure(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSimulationRepository(db)
	require.NoError(t, db.Close())

	_, err := repo.Get(context.Background(), "s1")
	require.ErrorIs(t, err, repository.ErrStorageFailure)
	require.ErrorIs(t, repo.Ping(context.Background()), repository.ErrStorageFailure)
}

func ids(sims []simulation.Simulation) []string {
	out := make([]string, len(sims))
	for i, s := range sims {
		out[i] = s.ID
	}
	return out
}
