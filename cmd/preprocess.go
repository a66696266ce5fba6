package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/urban95/accessmap-cli/internal/model"
	"github.com/urban95/accessmap-cli/internal/preprocess"
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Compute per-building accessibility layers",
	Long:  "Reads the building, amenity and tree layers, counts amenities per category and trees within the analysis radius of every building centroid, and writes the result layers for the web map.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applyFlagOverrides(cmd)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		result, err := preprocess.New(cfg, st).Run(ctx)
		if err != nil {
			return err
		}

		printPreprocessResult(result)
		return nil
	},
}

func applyFlagOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("radius") {
		cfg.Access.RadiusM, _ = cmd.Flags().GetFloat64("radius")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Data.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.Data.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
}

func printPreprocessResult(result *model.RunResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Buildings:\t%d\n", result.Buildings)
	if result.SkippedBuildings > 0 {
		_, _ = fmt.Fprintf(w, "Skipped buildings:\t%d\n", result.SkippedBuildings)
	}
	_, _ = fmt.Fprintf(w, "Amenities:\t%d\n", result.Amenities)
	_, _ = fmt.Fprintf(w, "Trees:\t%d\n", result.Trees)
	_, _ = fmt.Fprintf(w, "Radius:\t%.0fm\n", result.RadiusM)

	types := make([]string, 0, len(result.TypeTotals))
	for typ := range result.TypeTotals {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", typ, result.TypeTotals[typ])
	}
	_, _ = fmt.Fprintf(w, "Layers written:\t%d\n", len(result.Layers))
	_ = w.Flush()
}

func init() {
	preprocessCmd.Flags().Float64("radius", 0, "analysis radius in meters around building centroids")
	preprocessCmd.Flags().String("data-dir", "", "directory holding the input layers")
	preprocessCmd.Flags().String("output-dir", "", "directory for the output layers")
	rootCmd.AddCommand(preprocessCmd)
}
