package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ganot/simcatalog/internal/app"
	"github.com/ganot/simcatalog/internal/dataset"
	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/ganot/simcatalog/internal/query"
)

// withCatalog opens the configured catalog for the duration of fn.
func withCatalog(cmd *cobra.Command, root *rootOptions, fn func(ctx context.Context, catalog *app.Catalog) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	catalog, err := app.OpenCatalog(ctx, cfg.DB, root.logger(cmd))
	if err != nil {
		return err
	}
	defer catalog.Close()
	return fn(ctx, catalog)
}

func newListCmd(root *rootOptions) *cobra.Command {
	var (
		statuses []string
		name     string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cataloged simulations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := query.ListRequest{Name: name, Limit: limit}
			for _, raw := range statuses {
				status, err := simulation.ParseStatus(raw)
				if err != nil {
					return err
				}
				req.Statuses = append(req.Statuses, status)
			}
			return withCatalog(cmd, root, func(ctx context.Context, catalog *app.Catalog) error {
				// Listing reads only the catalog, so the dataset store is never touched.
				engine := query.NewEngine(catalog.Simulations, dataset.NewStore(""), 0, root.logger(cmd))
				sims, err := engine.ListSimulations(ctx, req)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tROWS\tVARIABLES")
				for _, s := range sims {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
						s.ID, s.Status, s.Created.UTC().Format(time.RFC3339), s.RowCount, len(s.Variables))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "only list these statuses (repeatable or comma-separated)")
	cmd.Flags().StringVar(&name, "name", "", "only list simulations whose name contains this text")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of simulations (0 for all)")
	return cmd
}

func newShowCmd(root *rootOptions) *cobra.Command {
	var bySource bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one catalog record",
		Long:  "Show one catalog record by id, or with --source by the path of its source file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, root, func(ctx context.Context, catalog *app.Catalog) error {
				var (
					sim *simulation.Simulation
					err error
				)
				if bySource {
					// Records keep the path the watcher saw, which may be relative.
					sim, err = catalog.Simulations.GetBySource(ctx, args[0])
					if errors.Is(err, simulation.ErrSimulationNotFound) {
						if abs, absErr := filepath.Abs(args[0]); absErr == nil && abs != args[0] {
							sim, err = catalog.Simulations.GetBySource(ctx, abs)
						}
					}
				} else {
					sim, err = catalog.Simulations.Get(ctx, args[0])
				}
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				printSimulation(cmd, sim)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&bySource, "source", false, "look the record up by source file path")
	return cmd
}

func printSimulation(cmd *cobra.Command, sim *simulation.Simulation) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", sim.ID)
	fmt.Fprintf(tw, "name:\t%s\n", sim.Name)
	fmt.Fprintf(tw, "status:\t%s\n", sim.Status)
	fmt.Fprintf(tw, "source:\t%s\n", sim.SourcePath)
	fmt.Fprintf(tw, "attempts:\t%d\n", sim.Attempts)
	if sim.Status == simulation.StatusReady {
		fmt.Fprintf(tw, "rows:\t%d\n", sim.RowCount)
		fmt.Fprintf(tw, "variables:\t%s\n", strings.Join(sim.VariableNames(), ", "))
	}
	if sim.ErrorDetail != nil {
		fmt.Fprintf(tw, "error:\t%s\n", *sim.ErrorDetail)
	}
	if sim.QuarantinePath != "" {
		fmt.Fprintf(tw, "quarantine:\t%s\n", sim.QuarantinePath)
	}
	_ = tw.Flush()
}

func newSummaryCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show record counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCatalog(cmd, root, func(ctx context.Context, catalog *app.Catalog) error {
				counts, err := catalog.Simulations.Summary(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				total := 0
				for _, status := range simulation.AllStatuses {
					fmt.Fprintf(tw, "%s\t%d\n", status, counts[status])
					total += counts[status]
				}
				fmt.Fprintf(tw, "TOTAL\t%d\n", total)
				return tw.Flush()
			})
		},
	}
}
