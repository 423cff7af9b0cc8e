package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ganot/simcatalog/internal/converter"
	"github.com/ganot/simcatalog/internal/dataset"
)

func newConvertCmd(root *rootOptions) *cobra.Command {
	var (
		output string
		id     string
	)
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert one result file to a dataset without touching the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if output == "" {
				output = cfg.Watcher.ProcessedDir
			}
			// Same options as the pipeline, so a manual run agrees with it.
			conv := converter.New(dataset.NewStore(output), root.logger(cmd), converter.Options{MinSizeBytes: cfg.Watcher.MinSizeBytes})
			res, err := conv.Convert(cmd.Context(), args[0], id)
			if err != nil {
				return fmt.Errorf("convert %s: %w", filepath.Base(args[0]), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:        %s\n", res.ID)
			fmt.Fprintf(out, "rows:      %d\n", res.Metadata.RowCount)
			fmt.Fprintf(out, "variables: %s\n", strings.Join(variableNames(res), ", "))
			fmt.Fprintf(out, "dataset:   %s\n", res.DatasetPath)
			fmt.Fprintf(out, "metadata:  %s\n", res.MetadataPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "dataset directory (default: configured processed dir)")
	cmd.Flags().StringVar(&id, "id", "", "simulation id (default: derived from the file name)")
	return cmd
}

func variableNames(res *converter.Result) []string {
	names := make([]string, len(res.Metadata.Variables))
	for i, v := range res.Metadata.Variables {
		names[i] = v.Name
	}
	return names
}
