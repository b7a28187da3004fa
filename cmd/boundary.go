package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/divisions-cli/internal/division"
	"github.com/sells-group/divisions-cli/internal/geomcodec"
)

var (
	boundaryFormat    string
	boundaryOut       string
	boundaryRelative  bool
	boundaryPrecision int
)

var boundaryCmd = &cobra.Command{
	Use:   "boundary <country> [region] [place]",
	Short: "Resolve a chain to one division and export its boundary",
	Long:  "Resolves country, country/region, or country/region/place to exactly one division and prints its geometry in the requested format. When several places share a name, the first match in snapshot order wins and a warning is logged.",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		format, err := geomcodec.ParseFormat(boundaryFormat)
		if err != nil {
			return err
		}

		region, place := "", ""
		if len(args) > 1 {
			region = args[1]
		}
		if len(args) > 2 {
			place = args[2]
		}
		chain, err := division.NewChain(args[0], region, place)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := initService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		res, err := svc.Geometry(ctx, chain, format, geomcodec.Options{
			Relative:  boundaryRelative,
			Precision: boundaryPrecision,
		})
		if err != nil {
			return err
		}

		if res.Ambiguous {
			zap.L().Warn("chain matched several divisions",
				zap.String("chain", chain.Key()),
				zap.Int("matches", res.Matches),
				zap.String("selected", res.Candidate.ID),
			)
		}

		if boundaryOut != "" {
			if err := os.WriteFile(boundaryOut, res.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s boundary of %s (%s) to %s\n",
				format, res.Candidate.Name, res.Candidate.ID, boundaryOut)
			return nil
		}

		cmd.OutOrStdout().Write(res.Data) //nolint:errcheck
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	boundaryCmd.Flags().StringVar(&boundaryFormat, "format", "geojson", "output format: wkt, wkb, hexwkb, geojson, or svg")
	boundaryCmd.Flags().StringVarP(&boundaryOut, "out", "o", "", "write output to file instead of stdout")
	boundaryCmd.Flags().BoolVar(&boundaryRelative, "relative", false, "emit relative SVG path commands")
	boundaryCmd.Flags().IntVar(&boundaryPrecision, "precision", 0, "SVG coordinate precision (default 6)")
	rootCmd.AddCommand(boundaryCmd)
}
