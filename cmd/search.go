package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/divisions-cli/internal/division"
	"github.com/sells-group/divisions-cli/internal/resolver"
)

var searchCmd = &cobra.Command{
	Use:   "search <country> [region] <pattern>",
	Short: "Search place names under a country or region",
	Long:  "Matches place names case- and whitespace-insensitively. Patterns may use SQL wildcards (% and _); plain text matches as a substring. Patterns shorter than two significant characters return nothing.",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		country := args[0]
		region, pattern := "", args[1]
		if len(args) == 3 {
			region, pattern = args[1], args[2]
		}

		return runListing(cmd, func(ctx context.Context, svc *resolver.Service) ([]division.Candidate, error) {
			chain, err := division.NewChain(country, region, "")
			if err != nil {
				return nil, err
			}
			return svc.Search(ctx, chain, pattern)
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
