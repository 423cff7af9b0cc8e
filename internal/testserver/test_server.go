// Package testserver runs the fully wired catalog in-process for end-to-end
// tests.
package testserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganot/simcatalog/internal/app"
	"github.com/ganot/simcatalog/internal/config"
	"github.com/ganot/simcatalog/internal/domain/simulation"
)

// TestServer is a running pipeline plus HTTP API over temporary directories.
type TestServer struct {
	App    *app.App
	Server *httptest.Server
	Config config.Config

	cancel context.CancelFunc
	done   chan error
}

// DefaultConfig returns a configuration rooted at dir with timings short enough
// for tests.
func DefaultConfig(dir string) config.Config {
	cfg := config.Default()
	cfg.DB.Path = filepath.Join(dir, "catalog.db")
	cfg.Watcher.InputDir = filepath.Join(dir, "raw")
	cfg.Watcher.ProcessedDir = filepath.Join(dir, "processed")
	cfg.Watcher.QuarantineDir = filepath.Join(dir, "quarantine")
	cfg.Watcher.Debounce = 50 * time.Millisecond
	cfg.Watcher.RescanInterval = 200 * time.Millisecond
	cfg.Watcher.BackoffBase = 10 * time.Millisecond
	cfg.Watcher.BackoffMax = 20 * time.Millisecond
	cfg.Watcher.ConvertTimeout = 5 * time.Second
	cfg.Query.Timeout = 5 * time.Second
	return cfg
}

// New starts the stack for cfg. It is stopped when the test ends.
func New(t *testing.T, cfg config.Config) *TestServer {
	t.Helper()

	require.NoError(t, os.MkdirAll(cfg.Watcher.InputDir, 0o755))
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ts := &TestServer{
		App:    a,
		Server: httptest.NewServer(a.Handler),
		Config: cfg,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() { ts.done <- a.Run(ctx) }()

	t.Cleanup(ts.Stop)
	return ts
}

// Stop shuts the pipeline down and releases the database. It is safe to
// call more than once.
func (ts *TestServer) Stop() {
	if ts.cancel == nil {
		return
	}
	ts.cancel()
	<-ts.done
	ts.cancel = nil
	ts.Server.Close()
	ts.App.Close()
}

// Drop writes a result file into the input directory atomically, so the
// watcher only ever sees the complete file.
func (ts *TestServer) Drop(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(ts.Config.Watcher.InputDir, name)
	tmp := filepath.Join(ts.Config.Watcher.InputDir, "."+name+".tmp")
	require.NoError(t, os.WriteFile(tmp, content, 0o644))
	require.NoError(t, os.Rename(tmp, path))
	return path
}

// WaitStatus waits until the record exists with the given status.
func (ts *TestServer) WaitStatus(t *testing.T, id string, status simulation.Status) *simulation.Simulation {
	t.Helper()
	var sim *simulation.Simulation
	require.Eventually(t, func() bool {
		got, err := ts.App.Catalog.Get(context.Background(), id)
		if err != nil {
			return false
		}
		sim = got
		return got.Status == status
	}, 10*time.Second, 20*time.Millisecond, "simulation %s never reached %s", id, status)
	return sim
}

// GetJSON performs a GET against the API and decodes the data envelope.
func (ts *TestServer) GetJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(ts.Server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if env.Error == nil && out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode
}
