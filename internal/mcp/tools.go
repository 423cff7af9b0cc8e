package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ganot/simcatalog/internal/dataset"
	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/ganot/simcatalog/internal/query"
)

type ListSimulationsInput struct {
	Status      []string `json:"status,omitempty" jsonschema:"only return simulations in these statuses (PENDING, CONVERTING, READY, FAILED, QUARANTINED)"`
	CreatedFrom string   `json:"created_from,omitempty" jsonschema:"only simulations created at or after this RFC 3339 time"`
	CreatedTo   string   `json:"created_to,omitempty" jsonschema:"only simulations created at or before this RFC 3339 time"`
	Name        string   `json:"name,omitempty" jsonschema:"only simulations whose name contains this text"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of simulations to return"`
}

type SimulationInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Created   string   `json:"created"`
	Status    string   `json:"status"`
	Variables []string `json:"variables"`
	RowCount  int64    `json:"row_count"`
	Duration  *float64 `json:"duration,omitempty"`
}

type ListSimulationsOutput struct {
	Simulations []SimulationInfo `json:"simulations"`
}

type GetSimulationDataInput struct {
	SimulationID string   `json:"simulation_id" jsonschema:"simulation id from list_simulations"`
	Variables    []string `json:"variables,omitempty" jsonschema:"variables to return; all when omitted"`
	TimeStart    *float64 `json:"time_start,omitempty" jsonschema:"inclusive lower bound on simulation time"`
	TimeEnd      *float64 `json:"time_end,omitempty" jsonschema:"inclusive upper bound on simulation time"`
	SampleRate   *int     `json:"sample_rate,omitempty" jsonschema:"keep the first row of every group of this many rows"`
	Limit        *int     `json:"limit,omitempty" jsonschema:"maximum number of rows to return"`
}

type GetVariablesInput struct {
	SimulationID string `json:"simulation_id" jsonschema:"simulation id from list_simulations"`
}

type GetVariablesOutput struct {
	SimulationID string   `json:"simulation_id"`
	Variables    []string `json:"variables"`
}

type GetVariableStatsInput struct {
	SimulationID string `json:"simulation_id" jsonschema:"simulation id from list_simulations"`
	Variable     string `json:"variable" jsonschema:"variable name from get_variables"`
}

type GetVariableStatsOutput struct {
	SimulationID string               `json:"simulation_id"`
	Variable     string               `json:"variable"`
	Count        int                  `json:"count"`
	Mean         *float64             `json:"mean,omitempty"`
	Std          *float64             `json:"std,omitempty"`
	Min          *float64             `json:"min,omitempty"`
	Max          *float64             `json:"max,omitempty"`
	Percentiles  *dataset.Percentiles `json:"percentiles,omitempty"`
}

type tools struct {
	queries Queries
}

func registerTools(server *sdkmcp.Server, queries Queries) {
	t := &tools{queries: queries}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_simulations",
		Description: "List cataloged simulations, newest first, optionally filtered by status and creation time",
	}, t.listSimulations)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_simulation_data",
		Description: "Read time series rows of a READY simulation with optional projection, time window, downsampling and limit",
	}, t.getSimulationData)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_variables",
		Description: "List the variables recorded by a READY simulation",
	}, t.getVariables)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_variable_stats",
		Description: "Get precomputed count, mean, std, min, max and percentiles of one variable",
	}, t.getVariableStats)
}

func (t *tools) listSimulations(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListSimulationsInput) (*sdkmcp.CallToolResult, ListSimulationsOutput, error) {
	req := query.ListRequest{Name: in.Name, Limit: in.Limit}
	for _, raw := range in.Status {
		status, err := simulation.ParseStatus(raw)
		if err != nil {
			return nil, ListSimulationsOutput{}, MapError(fmt.Errorf("%w: %v", query.ErrInvalidParameter, err))
		}
		req.Statuses = append(req.Statuses, status)
	}
	var err error
	if req.CreatedFrom, err = parseTime("created_from", in.CreatedFrom); err != nil {
		return nil, ListSimulationsOutput{}, MapError(err)
	}
	if req.CreatedTo, err = parseTime("created_to", in.CreatedTo); err != nil {
		return nil, ListSimulationsOutput{}, MapError(err)
	}

	sims, err := t.queries.ListSimulations(ctx, req)
	if err != nil {
		return nil, ListSimulationsOutput{}, MapError(err)
	}
	out := ListSimulationsOutput{Simulations: make([]SimulationInfo, 0, len(sims))}
	for _, s := range sims {
		vars := s.Variables
		if vars == nil {
			vars = []string{}
		}
		out.Simulations = append(out.Simulations, SimulationInfo{
			ID:        s.ID,
			Name:      s.Name,
			Created:   s.Created.UTC().Format(time.RFC3339),
			Status:    string(s.Status),
			Variables: vars,
			RowCount:  s.RowCount,
			Duration:  s.Duration,
		})
	}
	return jsonResult(out)
}

func (t *tools) getSimulationData(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetSimulationDataInput) (*sdkmcp.CallToolResult, query.DataResult, error) {
	result, err := t.queries.GetData(ctx, query.Spec{
		SimulationID: in.SimulationID,
		Variables:    in.Variables,
		TimeStart:    in.TimeStart,
		TimeEnd:      in.TimeEnd,
		SampleRate:   in.SampleRate,
		Limit:        in.Limit,
	})
	if err != nil {
		return nil, query.DataResult{}, MapError(err)
	}
	return jsonResult(*result)
}

func (t *tools) getVariables(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetVariablesInput) (*sdkmcp.CallToolResult, GetVariablesOutput, error) {
	names, err := t.queries.GetVariables(ctx, in.SimulationID)
	if err != nil {
		return nil, GetVariablesOutput{}, MapError(err)
	}
	if names == nil {
		names = []string{}
	}
	return jsonResult(GetVariablesOutput{SimulationID: in.SimulationID, Variables: names})
}

func (t *tools) getVariableStats(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetVariableStatsInput) (*sdkmcp.CallToolResult, GetVariableStatsOutput, error) {
	stats, err := t.queries.GetVariableStats(ctx, in.SimulationID, in.Variable)
	if err != nil {
		return nil, GetVariableStatsOutput{}, MapError(err)
	}
	return jsonResult(GetVariableStatsOutput{
		SimulationID: stats.SimulationID,
		Variable:     stats.Variable,
		Count:        stats.Count,
		Mean:         stats.Mean,
		Std:          stats.Std,
		Min:          stats.Min,
		Max:          stats.Max,
		Percentiles:  stats.Percentiles,
	})
}

// jsonResult renders out as text content alongside the structured output.
func jsonResult[T any](out T) (*sdkmcp.CallToolResult, T, error) {
	data, err := json.Marshal(out)
	if err != nil {
		var zero T
		return nil, zero, fmt.Errorf("encode result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, out, nil
}

func parseTime(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC 3339 time", query.ErrInvalidParameter, name)
	}
	t = t.UTC()
	return &t, nil
}
