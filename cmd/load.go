package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/divisions-cli/internal/dataset"
	"github.com/sells-group/divisions-cli/internal/loader"
)

var loadManifest string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Build a dataset snapshot from a source manifest",
	Long:  "Downloads the boundary archives named in the manifest, parses their shapefiles, and replaces the local snapshot atomically.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loadManifest != "" {
			cfg.Loader.Manifest = loadManifest
		}
		if err := cfg.Validate("load"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m, err := loader.ReadManifest(cfg.Loader.Manifest)
		if err != nil {
			return err
		}

		gw, err := dataset.OpenSQLite(cfg.Dataset.Path)
		if err != nil {
			return err
		}
		defer gw.Close() //nolint:errcheck

		l := loader.New(gw, loader.Options{
			TempDir:     cfg.Loader.TempDir,
			UserAgent:   cfg.Loader.UserAgent,
			Timeout:     time.Duration(cfg.Loader.TimeoutSecs) * time.Second,
			Concurrency: cfg.Loader.Concurrency,
		})

		summary, err := l.Run(ctx, m)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s loaded: version %s, %d rows from %d sources in %s\n",
			summary.SnapshotID, summary.Version, summary.Rows, summary.Sources,
			summary.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadManifest, "manifest", "", "manifest path (default from config)")
	rootCmd.AddCommand(loadCmd)
}
