package converter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ganot/simcatalog/internal/dataset"
	"github.com/ganot/simcatalog/internal/domain/simulation"
)

// Reader extracts a variable table from one source format. Names in the
// returned table are raw; the converter normalizes them.
type Reader interface {
	Read(ctx context.Context, path string) (*dataset.Table, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, path string) (*dataset.Table, error)

func (f ReaderFunc) Read(ctx context.Context, path string) (*dataset.Table, error) {
	return f(ctx, path)
}

// CSVReader reads result exports whose first column is the simulation time.
type CSVReader struct{}

func (CSVReader) Read(ctx context.Context, path string) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s has no header", ErrEmptyResult, path)
	}
	if err != nil {
		return nil, formatErr(path, "reading header: %v", err)
	}
	if len(header) < 2 {
		return nil, formatErr(path, "expected a time column and at least one variable")
	}
	if NormalizeName(header[0]) != dataset.TimeColumn {
		return nil, formatErr(path, "first column is %q, want %q", header[0], dataset.TimeColumn)
	}

	table := &dataset.Table{Variables: make([]simulation.Variable, 0, len(header)-1)}
	for _, name := range header[1:] {
		table.Variables = append(table.Variables, simulation.Variable{Name: name, Kind: simulation.KindFloat})
	}

	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, formatErr(path, "%v", perr)
			}
			return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
		}
		row, err := dataset.ParseRow(record)
		if err != nil {
			return nil, formatErr(path, "line %d: %v", line, err)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
