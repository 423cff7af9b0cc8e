package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	require.Equal(t, slog.LevelError, parseLogLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLogLevel(""))
}

func TestLogFileWriterKeepsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "simcatalog.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	head := bytes.Repeat([]byte("a"), maxLogSizeBytes-keepLogSizeBytes)
	tail := bytes.Repeat([]byte("b"), keepLogSizeBytes)
	require.NoError(t, os.WriteFile(path, append(head, tail...), 0o644))

	w, file, err := newLogFileWriter(path)
	require.NoError(t, err)
	defer file.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(maxLogSizeBytes), info.Size(), "at the limit nothing is dropped")

	_, err = w.Write([]byte("c\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, keepLogSizeBytes)
	require.Equal(t, byte('b'), data[0])
	require.True(t, bytes.HasSuffix(data, []byte("bc\n")))
}
