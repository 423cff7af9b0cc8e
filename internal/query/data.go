package query

import (
	"context"
	"fmt"

	"github.com/ganot/simcatalog/internal/dataset"
)

// Point is one output row keyed by column name. Missing values are nil.
type Point map[string]*float64

// TimeRange is the time span of the returned rows.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// DataResult is the answer to GetData.
type DataResult struct {
	SimulationID   string     `json:"simulation_id"`
	SimulationName string     `json:"simulation_name"`
	Variables      []string   `json:"variables"`
	DataPoints     int        `json:"data_points"`
	TimeRange      *TimeRange `json:"time_range"`
	Data           []Point    `json:"data"`
}

// GetData returns rows of a READY simulation. Filters apply in order:
// variable projection, inclusive time clip, first-in-bucket downsampling by
// SampleRate, then Limit. An empty time window is not an error.
func (e *Engine) GetData(ctx context.Context, spec Spec) (*DataResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var out *DataResult
	err := e.run(ctx, func(ctx context.Context) error {
		sim, err := e.ready(ctx, spec.SimulationID)
		if err != nil {
			return err
		}

		variables := spec.Variables
		if len(variables) == 0 {
			variables = sim.VariableNames()
		}
		variables = dedupe(variables)
		for _, v := range variables {
			if !sim.HasVariable(v) {
				return fmt.Errorf("%w: unknown variable %q", ErrInvalidParameter, v)
			}
		}

		table, err := e.store.Load(ctx, sim.DatasetPath)
		if err != nil {
			return e.storeErr(ctx, err)
		}
		columns := make([]int, len(variables))
		for i, v := range variables {
			columns[i] = table.Index(v)
			if columns[i] < 0 {
				return fmt.Errorf("%w: dataset is missing column %q", ErrStorageFailure, v)
			}
		}

		rows := selectRows(table.Rows, spec)
		out = &DataResult{
			SimulationID:   sim.ID,
			SimulationName: sim.Name,
			Variables:      variables,
			DataPoints:     len(rows),
			Data:           make([]Point, len(rows)),
		}
		for i, row := range rows {
			out.Data[i] = toPoint(row, variables, columns)
		}
		if len(rows) > 0 {
			out.TimeRange = &TimeRange{Start: rows[0].Time, End: rows[len(rows)-1].Time}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// selectRows applies the time clip, downsampling and limit.
func selectRows(rows []dataset.Row, spec Spec) []dataset.Row {
	clipped := make([]dataset.Row, 0, len(rows))
	for _, r := range rows {
		if spec.TimeStart != nil && r.Time < *spec.TimeStart {
			continue
		}
		if spec.TimeEnd != nil && r.Time > *spec.TimeEnd {
			continue
		}
		clipped = append(clipped, r)
	}

	if spec.SampleRate != nil && *spec.SampleRate > 1 {
		rate := *spec.SampleRate
		sampled := make([]dataset.Row, 0, (len(clipped)+rate-1)/rate)
		for i := 0; i < len(clipped); i += rate {
			sampled = append(sampled, clipped[i])
		}
		clipped = sampled
	}

	if spec.Limit != nil && len(clipped) > *spec.Limit {
		clipped = clipped[:*spec.Limit]
	}
	return clipped
}

func toPoint(row dataset.Row, variables []string, columns []int) Point {
	p := make(Point, len(variables)+1)
	t := row.Time
	p[dataset.TimeColumn] = &t
	for i, name := range variables {
		v := row.Values[columns[i]]
		if dataset.IsMissing(v) {
			p[name] = nil
			continue
		}
		p[name] = &v
	}
	return p
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Series is one variable in the format time-series dashboards consume:
// datapoints are [value, time_ms] pairs.
type Series struct {
	Target     string   `json:"target"`
	Datapoints [][2]any `json:"datapoints"`
}

// Timeseries returns one series per selected variable, built from GetData.
// Simulation time is reported in milliseconds.
func (e *Engine) Timeseries(ctx context.Context, spec Spec) ([]Series, error) {
	result, err := e.GetData(ctx, spec)
	if err != nil {
		return nil, err
	}
	series := make([]Series, len(result.Variables))
	for i, name := range result.Variables {
		s := Series{Target: name, Datapoints: make([][2]any, len(result.Data))}
		for j, p := range result.Data {
			var value any
			if v := p[name]; v != nil {
				value = *v
			}
			s.Datapoints[j] = [2]any{value, int64(*p[dataset.TimeColumn] * 1000)}
		}
		series[i] = s
	}
	return series, nil
}
