package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ganot/simcatalog/internal/app"
	"github.com/ganot/simcatalog/internal/config"
	"github.com/ganot/simcatalog/internal/converter"
	"github.com/ganot/simcatalog/internal/domain/simulation"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeResult(t *testing.T, dir, name string, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,temperature,pressure\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%d,%d,%d\n", i, 20+i%10, 100+i%7)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeResult(t, dir, "thermal_20240315_093000.csv", 50)
	output := filepath.Join(dir, "processed")

	out, err := execute(t, "convert", src, "--output", output)
	require.NoError(t, err)
	require.Contains(t, out, "thermal_20240315_093000")
	require.Contains(t, out, "rows:      50")
	require.Contains(t, out, "temperature, pressure")
	require.FileExists(t, filepath.Join(output, "thermal_20240315_093000.csv"))
	require.FileExists(t, filepath.Join(output, "thermal_20240315_093000.metadata.json"))
}

func TestConvertCommandRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(src, nil, 0o644))

	_, err := execute(t, "convert", src, "--output", filepath.Join(dir, "processed"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty.csv")
}

func TestConvertCommandUsesConfiguredMinimumSize(t *testing.T) {
	dir := t.TempDir()
	src := writeResult(t, dir, "small_20240315_093000.csv", 5)
	t.Setenv(config.EnvPrefix+"WATCHER_MIN_SIZE_BYTES", "4096")

	_, err := execute(t, "convert", src, "--output", filepath.Join(dir, "processed"))
	require.Error(t, err)
	require.ErrorIs(t, err, converter.ErrUnreadableSource)
	require.NoFileExists(t, filepath.Join(dir, "processed", "small_20240315_093000.csv"))
}

func TestListAndSummaryCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	t.Setenv(config.EnvPrefix+"DB_PATH", dbPath)

	ctx := context.Background()
	catalog, err := app.OpenCatalog(ctx, config.DBConfig{Driver: "sqlite", Path: dbPath}, nil)
	require.NoError(t, err)
	for _, id := range []string{"alpha_20240101_000000", "beta_20240102_000000"} {
		_, _, err := catalog.Simulations.Register(ctx, simulation.RegisterRequest{ID: id, Name: strings.Split(id, "_")[0], SourcePath: "/in/" + id + ".csv"})
		require.NoError(t, err)
	}
	_, err = catalog.Simulations.Transition(ctx, "beta_20240102_000000", simulation.StatusPending, simulation.StatusConverting, simulation.TransitionDetail{})
	require.NoError(t, err)
	require.NoError(t, catalog.Close())

	out, err := execute(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "alpha_20240101_000000")
	require.Contains(t, out, "beta_20240102_000000")

	out, err = execute(t, "list", "--status", "converting")
	require.NoError(t, err)
	require.NotContains(t, out, "alpha_20240101_000000")
	require.Contains(t, out, "beta_20240102_000000")

	out, err = execute(t, "summary")
	require.NoError(t, err)
	require.Regexp(t, `PENDING\s+1`, out)
	require.Regexp(t, `CONVERTING\s+1`, out)
	require.Regexp(t, `TOTAL\s+2`, out)

	out, err = execute(t, "list", "--name", "ALP")
	require.NoError(t, err)
	require.Contains(t, out, "alpha_20240101_000000")
	require.NotContains(t, out, "beta_20240102_000000")

	out, err = execute(t, "show", "beta_20240102_000000")
	require.NoError(t, err)
	require.Regexp(t, `status:\s+CONVERTING`, out)

	out, err = execute(t, "show", "--source", "/in/alpha_20240101_000000.csv")
	require.NoError(t, err)
	require.Regexp(t, `id:\s+alpha_20240101_000000`, out)
	require.Regexp(t, `status:\s+PENDING`, out)

	_, err = execute(t, "show", "--source", "/in/missing.csv")
	require.ErrorIs(t, err, simulation.ErrSimulationNotFound)

	_, err = execute(t, "list", "--status", "done")
	require.Error(t, err)
}
