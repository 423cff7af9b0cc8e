package dataset

import (
	"math"
	"sort"
	"time"

	"github.com/ganot/simcatalog/internal/domain/simulation"
)

// TimeRange bounds a dataset in simulation time units.
type TimeRange struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// Percentiles holds selected percentiles of a variable.
type Percentiles struct {
	P25 float64 `json:"25"`
	P50 float64 `json:"50"`
	P75 float64 `json:"75"`
	P95 float64 `json:"95"`
}

// Stats summarizes the non-missing values of one variable. Statistics of a
// variable with no values are reported with Count 0 and null values.
type Stats struct {
	Count       int          `json:"count"`
	Mean        *float64     `json:"mean"`
	Std         *float64     `json:"std"`
	Min         *float64     `json:"min"`
	Max         *float64     `json:"max"`
	Percentiles *Percentiles `json:"percentiles,omitempty"`
}

// Metadata is the sidecar record written next to each dataset.
type Metadata struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	SourcePath string                `json:"source_path"`
	Variables  []simulation.Variable `json:"variables"`
	TimeRange  TimeRange             `json:"time_range"`
	RowCount   int64                 `json:"row_count"`
	Stats      map[string]Stats      `json:"stats"`
	ExportedAt time.Time             `json:"exported_at"`
}

// BuildMetadata computes the metadata of a table, including per-variable stats.
func BuildMetadata(id, name, sourcePath string, table *Table, exportedAt time.Time) *Metadata {
	start, end := table.TimeRange()
	meta := &Metadata{
		ID:         id,
		Name:       name,
		SourcePath: sourcePath,
		Variables:  table.Variables,
		TimeRange:  TimeRange{Start: start, End: end, Duration: end - start},
		RowCount:   int64(len(table.Rows)),
		Stats:      make(map[string]Stats, len(table.Variables)),
		ExportedAt: exportedAt,
	}
	for i, v := range table.Variables {
		meta.Stats[v.Name] = ComputeStats(table.Column(i))
	}
	return meta
}

// scaleThreshold is the magnitude above which squared deviations could
// overflow a float64.
const scaleThreshold = 1e100

// ComputeStats computes count, mean, population standard deviation, min, max
// and percentiles over the non-missing values.
func ComputeStats(values []float64) Stats {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !IsMissing(v) {
			present = append(present, v)
		}
	}
	n := len(present)
	if n == 0 {
		return Stats{}
	}

	minV, maxV := present[0], present[0]
	for _, v := range present {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	// Large magnitudes are scaled down so the sums stay finite.
	scale := math.Max(math.Abs(minV), math.Abs(maxV))
	if scale < scaleThreshold {
		scale = 1
	}
	sum := 0.0
	for _, v := range present {
		sum += v / scale
	}
	mean := sum / float64(n)

	sq := 0.0
	for _, v := range present {
		d := v/scale - mean
		sq += d * d
	}
	std := math.Sqrt(sq/float64(n)) * scale
	mean *= scale

	sorted := append([]float64(nil), present...)
	sort.Float64s(sorted)

	return Stats{
		Count: n,
		Mean:  &mean,
		Std:   &std,
		Min:   &minV,
		Max:   &maxV,
		Percentiles: &Percentiles{
			P25: percentile(sorted, 25),
			P50: percentile(sorted, 50),
			P75: percentile(sorted, 75),
			P95: percentile(sorted, 95),
		},
	}
}

// percentile uses linear interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
