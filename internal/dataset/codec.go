package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ganot/simcatalog/internal/domain/simulation"
)

// ErrMalformed is returned when a stored dataset cannot be decoded.
var ErrMalformed = errors.New("malformed dataset")

// WriteCSV encodes a table with a "time" header column followed by the
// variables. Missing values are written as empty cells.
func WriteCSV(w io.Writer, table *Table) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(table.Variables)+1)
	header = append(header, TimeColumn)
	for _, v := range table.Variables {
		header = append(header, v.Name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range table.Rows {
		record[0] = formatFloat(row.Time)
		for i, v := range row.Values {
			record[i+1] = formatFloat(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV decodes a table written by WriteCSV.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformed, err)
	}
	if len(header) == 0 || header[0] != TimeColumn {
		return nil, fmt.Errorf("%w: first column must be %q", ErrMalformed, TimeColumn)
	}

	table := &Table{Variables: make([]simulation.Variable, 0, len(header)-1)}
	for _, name := range header[1:] {
		table.Variables = append(table.Variables, simulation.Variable{Name: name, Kind: simulation.KindFloat})
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		row, err := ParseRow(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ParseRow converts a CSV record whose first cell is the time value. Empty
// and NaN cells become missing values; the time cell must be present.
// Infinite values are rejected.
func ParseRow(record []string) (Row, error) {
	t, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
	if err != nil || IsMissing(t) || math.IsInf(t, 0) {
		return Row{}, fmt.Errorf("invalid time %q", record[0])
	}
	row := Row{Time: t, Values: make([]float64, len(record)-1)}
	for i, cell := range record[1:] {
		v, err := parseValue(cell)
		if err != nil {
			return Row{}, err
		}
		row.Values[i] = v
	}
	return row, nil
}

func parseValue(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") || strings.EqualFold(cell, "null") {
		return Missing, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid value %q", cell)
	}
	return v, nil
}

func formatFloat(v float64) string {
	if IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
