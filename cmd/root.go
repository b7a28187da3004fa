package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/divisions-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "divisions-cli",
	Short: "Administrative boundary lookup service",
	Long:  "Resolves country/region/place chains against a local boundary snapshot: listings, name search, and geometry export in WKT, WKB, GeoJSON, and SVG.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
