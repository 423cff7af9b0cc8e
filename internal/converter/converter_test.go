package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ganot/simcatalog/internal/dataset"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestConverter(t *testing.T) (*Converter, string) {
	t.Helper()
	root := t.TempDir()
	out := filepath.Join(root, "processed")
	return New(dataset.NewStore(out), nil, Options{}), root
}

func TestConvertWritesDatasetAndMetadata(t *testing.T) {
	conv, dir := newTestConverter(t)

	var b strings.Builder
	b.WriteString("time, Temperature ,Pressure\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&b, "%d,%d,%d\n", i, 20+i%5, 100+i%3)
	}
	src := writeSource(t, dir, "thermal_run_20240315_093000.csv", b.String())

	res, err := conv.Convert(context.Background(), src, "")
	require.NoError(t, err)
	require.Equal(t, "thermal_run_20240315_093000", res.ID)
	require.Equal(t, "thermal_run", res.Name)
	require.Equal(t, []string{"temperature", "pressure"}, []string{res.Table.Variables[0].Name, res.Table.Variables[1].Name})
	require.Len(t, res.Table.Rows, 1000)

	require.FileExists(t, res.DatasetPath)
	require.FileExists(t, res.MetadataPath)
	require.Equal(t, 1000, res.Metadata.Stats["temperature"].Count)
	require.Equal(t, 20.0, *res.Metadata.Stats["temperature"].Min)
	require.Equal(t, 24.0, *res.Metadata.Stats["temperature"].Max)

	info := res.DatasetInfo()
	require.Equal(t, 0.0, info.TimeStart)
	require.Equal(t, 999.0, info.TimeEnd)
	require.Equal(t, int64(1000), info.RowCount)
}

func TestConvertUsesGivenID(t *testing.T) {
	conv, dir := newTestConverter(t)
	src := writeSource(t, dir, "loop.csv", "time,a\n0,1\n1,2\n")

	res, err := conv.Convert(context.Background(), src, "custom_id")
	require.NoError(t, err)
	require.Equal(t, "custom_id", res.ID)
	require.Equal(t, "custom_id.csv", filepath.Base(res.DatasetPath))
}

func TestConvertKeepsMissingValues(t *testing.T) {
	conv, dir := newTestConverter(t)
	src := writeSource(t, dir, "gaps.csv", "time,a,b\n0,1,\n1,,2\n2,3,4\n")

	res, err := conv.Convert(context.Background(), src, "gaps")
	require.NoError(t, err)
	require.Len(t, res.Table.Rows, 3)
	require.True(t, dataset.IsMissing(res.Table.Rows[0].Values[1]))
	require.Equal(t, 2, res.Metadata.Stats["a"].Count)
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		wantErr   error
		transient bool
	}{
		{name: "zero bytes", file: "empty.csv", content: "", wantErr: ErrEmptyResult},
		{name: "below minimum size", file: "tiny.csv", content: "time", wantErr: ErrUnreadableSource, transient: true},
		{name: "header only", file: "header.csv", content: "time,temperature,pressure\n", wantErr: ErrEmptyResult},
		{name: "unregistered extension", file: "run.h5", content: "HDF5 binary content here", wantErr: ErrCorruptFormat},
		{name: "missing time column", file: "notime.csv", content: "step,temperature\n0,1\n", wantErr: ErrCorruptFormat},
		{name: "non numeric value", file: "text.csv", content: "time,temperature\n0,hot\n", wantErr: ErrCorruptFormat},
		{name: "decreasing time", file: "back.csv", content: "time,temperature\n0,1\n2,1\n1,1\n", wantErr: ErrCorruptFormat},
		{name: "ragged rows", file: "ragged.csv", content: "time,a,b\n0,1,2\n1,2\n", wantErr: ErrCorruptFormat},
		{name: "name collision", file: "dup.csv", content: "time,Temp,temp\n0,1,2\n", wantErr: ErrCorruptFormat},
		{name: "whitespace collision", file: "dup2.csv", content: "time,wall temp,wall_temp\n0,1,2\n", wantErr: ErrCorruptFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, dir := newTestConverter(t)
			src := writeSource(t, dir, tt.file, tt.content)

			_, err := conv.Convert(context.Background(), src, "")
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, tt.transient, Transient(err))

			entries, _ := os.ReadDir(filepath.Join(dir, "processed"))
			require.Empty(t, entries, "nothing is written on failure")
		})
	}
}

func TestConvertMissingFileIsUnreadable(t *testing.T) {
	conv, dir := newTestConverter(t)
	_, err := conv.Convert(context.Background(), filepath.Join(dir, "gone.csv"), "")
	require.ErrorIs(t, err, ErrUnreadableSource)
	require.True(t, Transient(err))
}

func TestRegisterReader(t *testing.T) {
	conv, dir := newTestConverter(t)
	require.False(t, conv.Supports("run.sim"))

	conv.Register(".SIM", ReaderFunc(func(ctx context.Context, path string) (*dataset.Table, error) {
		return nil, &FormatError{Path: path, Reason: "bad magic"}
	}))
	require.True(t, conv.Supports("run.sim"))

	src := writeSource(t, dir, "run.sim", "not really a simulation file")
	_, err := conv.Convert(context.Background(), src, "")
	require.ErrorIs(t, err, ErrCorruptFormat)
	require.Contains(t, err.Error(), "bad magic")
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "wall_temperature", NormalizeName("  Wall \t Temperature "))
	require.Equal(t, "pressure", NormalizeName("PRESSURE"))
}

func TestTransient(t *testing.T) {
	require.False(t, Transient(nil))
	require.True(t, Transient(context.DeadlineExceeded))
	require.False(t, Transient(context.Canceled))
	require.False(t, Transient(fmt.Errorf("wrap: %w", ErrEmptyResult)))
}

func TestConvertStorageFailure(t *testing.T) {
	root := t.TempDir()
	blocked := filepath.Join(root, "processed")
	require.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0o644))
	conv := New(dataset.NewStore(filepath.Join(blocked, "sub")), nil, Options{})

	src := writeSource(t, root, "run_20240315_093000.csv", "time,energy\n0,1\n1,2\n")
	_, err := conv.Convert(context.Background(), src, "")
	require.ErrorIs(t, err, ErrStorageFailure)
	require.NotErrorIs(t, err, ErrCorruptFormat)
	require.False(t, Transient(err))
	require.FileExists(t, src)
}

func TestConvertLargeValues(t *testing.T) {
	conv, dir := newTestConverter(t)
	src := writeSource(t, dir, "big_20240315_093000.csv", "time,energy\n0,1e308\n1,1e308\n")

	res, err := conv.Convert(context.Background(), src, "")
	require.NoError(t, err)
	stats := res.Metadata.Stats["energy"]
	require.Equal(t, 2, stats.Count)
	require.Equal(t, 1e308, *stats.Mean)
	require.Equal(t, 0.0, *stats.Std)
	require.FileExists(t, res.MetadataPath)
}

func TestConvertRejectsInfiniteValues(t *testing.T) {
	conv, dir := newTestConverter(t)
	src := writeSource(t, dir, "inf_20240315_093000.csv", "time,energy\n0,1\n1,inf\n")

	_, err := conv.Convert(context.Background(), src, "")
	require.ErrorIs(t, err, ErrCorruptFormat)
	require.Contains(t, err.Error(), "inf")
}
