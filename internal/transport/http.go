package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/ganot/simcatalog/internal/notify"
	"github.com/ganot/simcatalog/internal/query"
	"github.com/ganot/simcatalog/internal/watcher"
)

// Queries is the read path served over HTTP.
type Queries interface {
	ListSimulations(ctx context.Context, req query.ListRequest) ([]query.SimulationSummary, error)
	GetRecord(ctx context.Context, id string) (*simulation.Simulation, error)
	GetData(ctx context.Context, spec query.Spec) (*query.DataResult, error)
	GetVariables(ctx context.Context, id string) ([]string, error)
	GetVariableStats(ctx context.Context, id, variable string) (*query.VariableStats, error)
	OpenDataset(ctx context.Context, id string) (*os.File, error)
	Timeseries(ctx context.Context, spec query.Spec) ([]query.Series, error)
}

// Catalog provides health and summary information.
type Catalog interface {
	Ping(ctx context.Context) error
	Summary(ctx context.Context) (map[simulation.Status]int, error)
}

// Events lists persisted pipeline events.
type Events interface {
	Recent(ctx context.Context, opts notify.ListOptions) ([]notify.Event, error)
}

// Pipeline reports watcher counters.
type Pipeline interface {
	Stats() watcher.Stats
}

// Deps wires the HTTP server. Pipeline, Events and MCP are optional.
type Deps struct {
	Queries  Queries
	Catalog  Catalog
	Events   Events
	Pipeline Pipeline
	MCP      http.Handler
	Logger   *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	deps   Deps
	logger *slog.Logger
}

const defaultEventLimit = 100

// NewServer creates an HTTP server router with middleware.
func NewServer(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv := &Server{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", srv.handleHealth)
	r.Get("/summary", srv.handleSummary)
	r.Get("/events", srv.handleEvents)

	r.Route("/simulations", func(r chi.Router) {
		r.Get("/", srv.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", srv.handleGet)
			r.Get("/data", srv.handleData)
			r.Get("/variables", srv.handleVariables)
			r.Get("/variables/{variable}/stats", srv.handleVariableStats)
			r.Get("/csv", srv.handleCSV)
			r.Get("/timeseries", srv.handleTimeseries)
		})
	})

	if deps.MCP != nil {
		r.Handle("/mcp", deps.MCP)
		r.Handle("/mcp/*", deps.MCP)
	}

	return r
}

type healthResponse struct {
	Status   string         `json:"status"`
	Pipeline *watcher.Stats `json:"pipeline,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		WriteError(w, err)
		return
	}
	resp := healthResponse{Status: "ok"}
	if s.deps.Pipeline != nil {
		stats := s.deps.Pipeline.Stats()
		resp.Pipeline = &stats
		if stats.LastStorageError != "" {
			resp.Status = "degraded"
		}
	}
	WriteData(w, resp)
}

type summaryResponse struct {
	Total  int                       `json:"total"`
	Counts map[simulation.Status]int `json:"counts"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Catalog.Summary(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := summaryResponse{Counts: make(map[simulation.Status]int, len(simulation.AllStatuses))}
	for _, status := range simulation.AllStatuses {
		resp.Counts[status] = counts[status]
		resp.Total += counts[status]
	}
	WriteData(w, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		WriteData(w, []notify.Event{})
		return
	}
	q := r.URL.Query()
	opts := notify.ListOptions{SimulationID: q.Get("simulation_id"), Limit: defaultEventLimit}
	if raw := q.Get("type"); raw != "" {
		t, err := parseEventType(raw)
		if err != nil {
			WriteError(w, err)
			return
		}
		opts.Type = &t
	}
	limit, err := query.ParseInt("limit", q.Get("limit"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if limit != nil {
		if *limit < 1 {
			WriteError(w, fmt.Errorf("%w: limit must be >= 1", query.ErrInvalidParameter))
			return
		}
		opts.Limit = *limit
	}

	events, err := s.deps.Events.Recent(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if events == nil {
		events = []notify.Event{}
	}
	WriteData(w, events)
}

func parseEventType(raw string) (notify.EventType, error) {
	for _, t := range []notify.EventType{notify.TypeIngested, notify.TypeFailed, notify.TypeQuarantined} {
		if strings.EqualFold(raw, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown event type %q", query.ErrInvalidParameter, raw)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	sims, err := s.deps.Queries.ListSimulations(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteData(w, sims)
}

func parseListRequest(r *http.Request) (query.ListRequest, error) {
	q := r.URL.Query()
	req := query.ListRequest{Name: strings.TrimSpace(q.Get("name"))}
	for _, raw := range query.ParseVariables(q.Get("status")) {
		status, err := simulation.ParseStatus(raw)
		if err != nil {
			return req, fmt.Errorf("%w: unknown status %q", query.ErrInvalidParameter, raw)
		}
		req.Statuses = append(req.Statuses, status)
	}
	var err error
	if req.CreatedFrom, err = parseTime("created_from", q.Get("created_from")); err != nil {
		return req, err
	}
	if req.CreatedTo, err = parseTime("created_to", q.Get("created_to")); err != nil {
		return req, err
	}
	limit, err := query.ParseInt("limit", q.Get("limit"))
	if err != nil {
		return req, err
	}
	if limit != nil {
		req.Limit = *limit
	}
	offset, err := query.ParseInt("offset", q.Get("offset"))
	if err != nil {
		return req, err
	}
	if offset != nil {
		req.Offset = *offset
	}
	return req, nil
}

// parseTime accepts RFC 3339 timestamps or bare dates.
func parseTime(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD", query.ErrInvalidParameter, name)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sim, err := s.deps.Queries.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteData(w, sim)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	spec, err := parseSpec(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	result, err := s.deps.Queries.GetData(r.Context(), spec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteData(w, result)
}

func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	spec, err := parseSpec(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	series, err := s.deps.Queries.Timeseries(r.Context(), spec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteData(w, series)
}

func parseSpec(r *http.Request) (query.Spec, error) {
	q := r.URL.Query()
	spec := query.Spec{
		SimulationID: chi.URLParam(r, "id"),
		Variables:    query.ParseVariables(q.Get("variables")),
	}
	var err error
	if spec.TimeStart, err = query.ParseFloat("time_start", q.Get("time_start")); err != nil {
		return spec, err
	}
	if spec.TimeEnd, err = query.ParseFloat("time_end", q.Get("time_end")); err != nil {
		return spec, err
	}
	if spec.SampleRate, err = query.ParseInt("sample_rate", q.Get("sample_rate")); err != nil {
		return spec, err
	}
	if spec.Limit, err = query.ParseInt("limit", q.Get("limit")); err != nil {
		return spec, err
	}
	return spec, nil
}

type variablesResponse struct {
	SimulationID string   `json:"simulation_id"`
	Variables    []string `json:"variables"`
}

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	names, err := s.deps.Queries.GetVariables(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteData(w, variablesResponse{SimulationID: id, Variables: names})
}

func (s *Server) handleVariableStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Queries.GetVariableStats(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "variable"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteData(w, stats)
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := s.deps.Queries.OpenDataset(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", query.ErrStorageFailure, err))
		return
	}
	name := id + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// fail logs unexpected errors before writing the envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := MapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	WriteError(w, err)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logger.Enabled(r.Context(), slog.LevelDebug) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
