package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/urban95/accessmap-cli/internal/filter"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Trim input layers to the study area",
	Long:  "Removes features farther than the configured distance from every boundary geometry and writes the trimmed layers, so preprocessing only sees the study area.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("max-distance-km") {
			cfg.Filter.MaxDistanceKM, _ = cmd.Flags().GetFloat64("max-distance-km")
		}
		if cmd.Flags().Changed("boundary") {
			cfg.Filter.BoundaryLayer, _ = cmd.Flags().GetString("boundary")
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.Data.DataDir, _ = cmd.Flags().GetString("data-dir")
		}
		if cmd.Flags().Changed("output-dir") {
			cfg.Data.OutputDir, _ = cmd.Flags().GetString("output-dir")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		result, err := filter.New(cfg, st).Run(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Kept:\t%d\n", result.Kept)
		_, _ = fmt.Fprintf(w, "Removed:\t%d\n", result.Removed)
		_, _ = fmt.Fprintf(w, "Layers written:\t%d\n", len(result.Layers))
		_ = w.Flush()
		return nil
	},
}

func init() {
	filterCmd.Flags().Float64("max-distance-km", 0, "maximum distance from the boundary in kilometers")
	filterCmd.Flags().String("boundary", "", "boundary layer file name inside the data directory")
	filterCmd.Flags().String("data-dir", "", "directory holding the input layers")
	filterCmd.Flags().String("output-dir", "", "directory for the trimmed layers")
	rootCmd.AddCommand(filterCmd)
}
