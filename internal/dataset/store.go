package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store lays out datasets and their metadata under a processed directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the processed directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the dataset file path for a simulation id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.root, id+".csv")
}

// MetadataPath returns the metadata sidecar path for a simulation id.
func (s *Store) MetadataPath(id string) string {
	return filepath.Join(s.root, id+".metadata.json")
}

// Save writes the dataset first and the metadata second, both atomically.
// When the metadata cannot be written the dataset is removed again.
func (s *Store) Save(table *Table, meta *Metadata) (string, string, error) {
	dataPath := s.Path(meta.ID)
	if err := WriteFileAtomic(dataPath, func(w io.Writer) error {
		return WriteCSV(w, table)
	}); err != nil {
		return "", "", fmt.Errorf("writing dataset: %w", err)
	}

	metaPath := s.MetadataPath(meta.ID)
	if err := WriteFileAtomic(metaPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		// A dataset without metadata is never served; drop it.
		_ = os.Remove(dataPath)
		return "", "", fmt.Errorf("writing metadata: %w", err)
	}
	return dataPath, metaPath, nil
}

// Load reads a dataset file.
func (s *Store) Load(ctx context.Context, path string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	table, err := ReadCSV(&ctxReader{ctx: ctx, r: f})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return table, nil
}

// LoadMetadata reads a metadata sidecar.
func (s *Store) LoadMetadata(ctx context.Context, path string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrMalformed, err)
	}
	return &meta, nil
}

// ctxReader stops a long read once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
