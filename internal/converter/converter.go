// Package converter turns raw simulation result files into normalized
// datasets with precomputed statistics.
package converter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ganot/simcatalog/internal/dataset"
	"github.com/ganot/simcatalog/internal/domain/simulation"
)

// DefaultMinSize is the smallest non-empty file considered complete.
const DefaultMinSize = 16

// Options configures a Converter.
type Options struct {
	// MinSizeBytes below which a non-empty file is treated as still being written.
	MinSizeBytes int64
}

// Result is the outcome of a successful conversion.
type Result struct {
	ID           string
	Name         string
	DatasetPath  string
	MetadataPath string
	Table        *dataset.Table
	Metadata     *dataset.Metadata
}

// DatasetInfo returns what the catalog records on the Ready transition.
func (r *Result) DatasetInfo() *simulation.DatasetInfo {
	start, end := r.Table.TimeRange()
	return &simulation.DatasetInfo{
		DatasetPath:  r.DatasetPath,
		MetadataPath: r.MetadataPath,
		Variables:    r.Table.Variables,
		TimeStart:    start,
		TimeEnd:      end,
		RowCount:     int64(len(r.Table.Rows)),
		ConvertedAt:  r.Metadata.ExportedAt,
	}
}

// Converter reads a source file with the reader registered for its
// extension and writes the dataset and metadata into the store. It never
// touches the catalog.
type Converter struct {
	store   *dataset.Store
	logger  *slog.Logger
	minSize int64
	now     func() time.Time

	mu      sync.RWMutex
	readers map[string]Reader
}

// New creates a converter writing into store, with the CSV reader registered.
func New(store *dataset.Store, logger *slog.Logger, opts Options) *Converter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	minSize := opts.MinSizeBytes
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	c := &Converter{
		store:   store,
		logger:  logger,
		minSize: minSize,
		now:     time.Now,
		readers: map[string]Reader{},
	}
	c.Register(".csv", CSVReader{})
	return c
}

// Register installs a reader for a file extension such as ".h5".
func (c *Converter) Register(ext string, r Reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readers[strings.ToLower(ext)] = r
}

// Supports reports whether a reader is registered for the path's extension.
func (c *Converter) Supports(path string) bool {
	_, ok := c.reader(path)
	return ok
}

func (c *Converter) reader(path string) (Reader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.readers[strings.ToLower(filepath.Ext(path))]
	return r, ok
}

// Convert validates, reads and normalizes one source file and writes its
// dataset under id. An empty id is derived from the file name.
func (c *Converter) Convert(ctx context.Context, sourcePath, id string) (*Result, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrCorruptFormat, sourcePath)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrEmptyResult, sourcePath)
	}
	if info.Size() < c.minSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, below minimum %d", ErrUnreadableSource, sourcePath, info.Size(), c.minSize)
	}

	reader, ok := c.reader(sourcePath)
	if !ok {
		return nil, fmt.Errorf("%w: no reader for extension %q", ErrCorruptFormat, filepath.Ext(sourcePath))
	}

	identity := simulation.DeriveIdentity(sourcePath, info.ModTime())
	if id == "" {
		id = identity.ID
	}

	table, err := reader.Read(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := normalize(sourcePath, table); err != nil {
		return nil, err
	}

	meta := dataset.BuildMetadata(id, identity.Name, sourcePath, table, c.now().UTC().Truncate(time.Second))
	dataPath, metaPath, err := c.store.Save(table, meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	c.logger.Debug("converted simulation",
		"id", id,
		"source", sourcePath,
		"rows", len(table.Rows),
		"variables", len(table.Variables),
	)

	return &Result{
		ID:           id,
		Name:         identity.Name,
		DatasetPath:  dataPath,
		MetadataPath: metaPath,
		Table:        table,
		Metadata:     meta,
	}, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeName returns the canonical form of a variable name.
func NormalizeName(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
}

// normalize canonicalizes variable names and checks the table shape.
func normalize(path string, table *dataset.Table) error {
	if len(table.Variables) == 0 {
		return formatErr(path, "no variables")
	}
	seen := make(map[string]string, len(table.Variables))
	for i, v := range table.Variables {
		name := NormalizeName(v.Name)
		if name == "" {
			return formatErr(path, "variable %d has an empty name", i+1)
		}
		if name == dataset.TimeColumn {
			return formatErr(path, "variable %q collides with the time column", v.Name)
		}
		if prev, dup := seen[name]; dup {
			return formatErr(path, "variables %q and %q both normalize to %q", prev, v.Name, name)
		}
		seen[name] = v.Name
		table.Variables[i].Name = name
		if table.Variables[i].Kind == "" {
			table.Variables[i].Kind = simulation.KindFloat
		}
	}

	if len(table.Rows) == 0 {
		return fmt.Errorf("%w: %s has a header but no rows", ErrEmptyResult, path)
	}
	for i, row := range table.Rows {
		if len(row.Values) != len(table.Variables) {
			return formatErr(path, "row %d has %d values, want %d", i+1, len(row.Values), len(table.Variables))
		}
		if i > 0 && row.Time < table.Rows[i-1].Time {
			return formatErr(path, "time decreases at row %d (%g after %g)", i+1, row.Time, table.Rows[i-1].Time)
		}
	}
	return nil
}
