package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/urban95/accessmap-cli/internal/site"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the accessibility web map",
	Long:  "Starts the HTTP server hosting the static map site, the output layer files, and a JSON API over run history.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return site.New(cfg, st).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}
