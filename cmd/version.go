package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/divisions-cli/internal/division"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the loaded dataset snapshot version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := initService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		v, err := svc.Version(division.Chain{})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
