// Package dataset holds the normalized tabular form of a simulation result and
// its on-disk encoding.
package dataset

import (
	"math"

	"github.com/ganot/simcatalog/internal/domain/simulation"
)

// TimeColumn is the name of the index column in every dataset.
const TimeColumn = "time"

// Missing marks a value absent from the source. Missing values are kept in
// place, never dropped.
var Missing = math.NaN()

// IsMissing reports whether v marks a missing value.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Row is one time step with one value per declared variable.
type Row struct {
	Time   float64
	Values []float64
}

// Table is a time-indexed table with ordered variable columns.
type Table struct {
	Variables []simulation.Variable
	Rows      []Row
}

// Index returns the column index of a variable, or -1.
func (t *Table) Index(name string) int {
	for i, v := range t.Variables {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// TimeRange returns the first and last time of the table.
func (t *Table) TimeRange() (float64, float64) {
	if len(t.Rows) == 0 {
		return 0, 0
	}
	return t.Rows[0].Time, t.Rows[len(t.Rows)-1].Time
}

// Column returns the values of one variable in row order.
func (t *Table) Column(idx int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[idx]
	}
	return out
}
