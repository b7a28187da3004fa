package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/divisions-cli/internal/division"
	"github.com/sells-group/divisions-cli/internal/resolver"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List divisions at a chain scope",
}

var listCountriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List all countries in the snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListing(cmd, func(ctx context.Context, svc *resolver.Service) ([]division.Candidate, error) {
			return svc.Countries(ctx, division.Chain{})
		})
	},
}

var listDependenciesCmd = &cobra.Command{
	Use:   "dependencies",
	Short: "List all dependencies in the snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListing(cmd, func(ctx context.Context, svc *resolver.Service) ([]division.Candidate, error) {
			return svc.Dependencies(ctx, division.Chain{})
		})
	},
}

var listRegionsCmd = &cobra.Command{
	Use:   "regions <country>",
	Short: "List a country's administrative regions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListing(cmd, func(ctx context.Context, svc *resolver.Service) ([]division.Candidate, error) {
			chain, err := division.NewChain(args[0], "", "")
			if err != nil {
				return nil, err
			}
			return svc.Regions(ctx, chain)
		})
	},
}

var listPlacesKind string

var listPlacesCmd = &cobra.Command{
	Use:   "places <country> [region]",
	Short: "List cities and counties under a country or region",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := division.ParsePlaceKind(listPlacesKind)
		if err != nil {
			return err
		}
		return runListing(cmd, func(ctx context.Context, svc *resolver.Service) ([]division.Candidate, error) {
			region := ""
			if len(args) == 2 {
				region = args[1]
			}
			chain, err := division.NewChain(args[0], region, "")
			if err != nil {
				return nil, err
			}
			return svc.Places(ctx, chain, kind)
		})
	},
}

var listSubtypesCmd = &cobra.Command{
	Use:   "subtypes",
	Short: "List the division subtypes present in the snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := initService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		subtypes, err := svc.Subtypes(ctx, division.Chain{})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(subtypes, "\n"))
		return nil
	},
}

// runListing opens the service, runs one listing operation, and renders the
// result table. Region-less countries come back as an empty table, not an
// error.
func runListing(cmd *cobra.Command, list func(context.Context, *resolver.Service) ([]division.Candidate, error)) error {
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

	cands, err := list(ctx, svc)
	if err != nil {
		if eris.Is(err, division.ErrNoRegions) {
			fmt.Fprintln(cmd.OutOrStdout(), "country has no administrative regions")
			return nil
		}
		return err
	}

	printCandidates(cmd.OutOrStdout(), cands)
	return nil
}

func init() {
	listPlacesCmd.Flags().StringVar(&listPlacesKind, "kind", "all", "place kind: cities, counties, or all")

	listCmd.AddCommand(listCountriesCmd, listDependenciesCmd, listRegionsCmd, listPlacesCmd, listSubtypesCmd)
	rootCmd.AddCommand(listCmd)
}

// printCandidates renders a candidate table.
func printCandidates(out io.Writer, cands []division.Candidate) {
	if len(cands) == 0 {
		fmt.Fprintln(out, "no divisions found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSUBTYPE\tCOUNTRY\tREGION\tNAME")
	_, _ = fmt.Fprintln(w, "--\t-------\t-------\t------\t----")
	for _, c := range cands {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Subtype, c.Country, c.Region, c.Name)
	}
	_ = w.Flush()
}
