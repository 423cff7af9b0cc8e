package dataset

import (
	"bytes"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	return &Table{
		Variables: []simulation.Variable{
			{Name: "temperature", Kind: simulation.KindFloat},
			{Name: "pressure", Kind: simulation.KindFloat},
		},
		Rows: []Row{
			{Time: 0, Values: []float64{20.5, 101.3}},
			{Time: 0.5, Values: []float64{Missing, 101.4}},
			{Time: 1, Values: []float64{21, 101.2}},
		},
	}
}

func TestCSVRoundTripKeepsMissingValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))
	require.Equal(t, "time,temperature,pressure\n0,20.5,101.3\n0.5,,101.4\n1,21,101.2\n", buf.String())

	table, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	require.Equal(t, []string{"temperature", "pressure"}, []string{table.Variables[0].Name, table.Variables[1].Name})
	require.True(t, IsMissing(table.Rows[1].Values[0]))
	require.Equal(t, 101.4, table.Rows[1].Values[1])
}

func TestReadCSVRejectsMissingTimeColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("step,temperature\n0,1\n"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestReadCSVRejectsBadValue(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("time,temperature\n0,hot\n"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats([]float64{1, 2, Missing, 3, 4})
	require.Equal(t, 4, stats.Count)
	require.InDelta(t, 2.5, *stats.Mean, 1e-9)
	require.InDelta(t, math.Sqrt(1.25), *stats.Std, 1e-9)
	require.Equal(t, 1.0, *stats.Min)
	require.Equal(t, 4.0, *stats.Max)
	require.InDelta(t, 1.75, stats.Percentiles.P25, 1e-9)
	require.InDelta(t, 2.5, stats.Percentiles.P50, 1e-9)
	require.InDelta(t, 3.85, stats.Percentiles.P95, 1e-9)
}

func TestComputeStatsLargeValues(t *testing.T) {
	stats := ComputeStats([]float64{1e308, 1e308})
	require.Equal(t, 1e308, *stats.Mean)
	require.Equal(t, 0.0, *stats.Std)

	stats = ComputeStats([]float64{-1.5e308, 1.5e308})
	require.InDelta(t, 0, *stats.Mean, 1e-9)
	require.InEpsilon(t, 1.5e308, *stats.Std, 1e-9)
	require.False(t, math.IsInf(*stats.Std, 0))
	require.InDelta(t, 0, stats.Percentiles.P50, 1e-9)
	require.False(t, math.IsInf(stats.Percentiles.P25, 0))
}

func TestParseRowRejectsInfinity(t *testing.T) {
	for _, record := range [][]string{{"0", "inf"}, {"0", "-Infinity"}, {"0", "1e400"}, {"inf", "1"}} {
		_, err := ParseRow(record)
		require.Error(t, err, record)
	}
}

func TestComputeStatsAllMissing(t *testing.T) {
	stats := ComputeStats([]float64{Missing, Missing})
	require.Equal(t, 0, stats.Count)
	require.Nil(t, stats.Mean)
	require.Nil(t, stats.Percentiles)
}

func TestBuildMetadata(t *testing.T) {
	exported := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	meta := BuildMetadata("run_20240315_093000", "run", "/in/run.csv", sampleTable(), exported)

	require.Equal(t, int64(3), meta.RowCount)
	require.Equal(t, TimeRange{Start: 0, End: 1, Duration: 1}, meta.TimeRange)
	require.Equal(t, 2, meta.Stats["temperature"].Count)
	require.Equal(t, 3, meta.Stats["pressure"].Count)
}

func TestStoreSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	store := NewStore(dir)
	table := sampleTable()
	meta := BuildMetadata("run_20240315_093000", "run", "/in/run.csv", table, time.Now().UTC())

	dataPath, metaPath, err := store.Save(table, meta)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "run_20240315_093000.csv"), dataPath)
	require.Equal(t, filepath.Join(dir, "run_20240315_093000.metadata.json"), metaPath)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "no temp files left behind")

	loaded, err := store.Load(context.Background(), dataPath)
	require.NoError(t, err)
	require.Len(t, loaded.Rows, 3)

	loadedMeta, err := store.LoadMetadata(context.Background(), metaPath)
	require.NoError(t, err)
	require.Equal(t, meta.ID, loadedMeta.ID)
	require.Equal(t, 2, loadedMeta.Stats["temperature"].Count)
	require.InDelta(t, 20.75, *loadedMeta.Stats["temperature"].Mean, 1e-9)
}

func TestStoreSaveRemovesDatasetWhenMetadataFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	store := NewStore(dir)
	table := sampleTable()
	meta := BuildMetadata("run_20240315_093000", "run", "/in/run.csv", table, time.Now().UTC())
	meta.TimeRange.Duration = math.Inf(1)

	_, _, err := store.Save(table, meta)
	require.Error(t, err)
	require.NoFileExists(t, store.Path("run_20240315_093000"))
	require.NoFileExists(t, store.MetadataPath("run_20240315_093000"))
}

func TestStoreLoadHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStore(t.TempDir()).Load(ctx, "missing.csv")
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteFileAtomicLeavesOldFileOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return os.ErrInvalid
	})
	require.ErrorIs(t, err, os.ErrInvalid)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "old", string(data))
	entries, _ := os.ReadDir(filepath.Dir(path))
	require.Len(t, entries, 1)
}
