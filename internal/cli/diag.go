package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yegors/flightbrief/internal/config"
	"github.com/yegors/flightbrief/internal/gazetteer"
	"github.com/yegors/flightbrief/internal/geo"
	"github.com/yegors/flightbrief/internal/stations"
	"github.com/yegors/flightbrief/internal/weather"
	"github.com/yegors/flightbrief/pkg/logger"
)

func loadGazetteer(cfg *config.Config) (*gazetteer.Gazetteer, error) {
	return gazetteer.LoadFiles(cfg.Gazetteer.AirportsFile, cfg.Gazetteer.RunwaysFile, cfg.Gazetteer.DomesticPrefix)
}

func newResolveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:     "resolve CODE...",
		Short:   "Show how airport codes resolve against the airport database",
		Example: "  flightbrief resolve BWI KDCA 1MD2",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			gaz, err := loadGazetteer(cfg)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INPUT\tCODE\tMETHOD\tAMBIGUOUS\tNAME\tTIMEZONE")
			for _, arg := range args {
				res := gaz.Resolve(arg)
				name, tz := "-", "-"
				if res.Airport != nil {
					name, tz = res.Airport.Name, res.Airport.Timezone
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", res.Input, res.Code, res.Method, res.Ambiguous, name, tz)
			}
			return w.Flush()
		},
	}
}

func newNearestCmd(load configLoader) *cobra.Command {
	var (
		limit   int
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "nearest CODE",
		Short: "List the fallback reporting stations for an airport",
		Example: `  flightbrief nearest 1MD2
  flightbrief nearest XYZ --offline --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			gaz, err := loadGazetteer(cfg)
			if err != nil {
				return err
			}

			var locator stations.Locator
			if !offline {
				locator = weather.NewClient(cfg.Weather, logger.NewNop())
			}
			finder := stations.NewFinder(gaz, locator, cfg.Weather.FallbackRadiusNM, logger.NewNop())

			candidates, err := finder.Nearest(cmd.Context(), gaz.Resolve(args[0]).Code, limit)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reporting stations found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSTATION\tDISTANCE_NM\tPRIMARY")
			for i, c := range candidates {
				fmt.Fprintf(w, "%d\t%s\t%.1f\t%t\n", i+1, c.ICAO, c.DistanceNM, c.Primary)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", stations.DefaultLimit, "Maximum number of stations")
	cmd.Flags().BoolVar(&offline, "offline", false, "Do not ask the weather service for unknown station coordinates")
	return cmd
}

func newZonesCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:     "zones LAT LON",
		Short:   "Check a position against permanent restricted airspace",
		Example: "  flightbrief zones --code KDCA -- 38.8521 -77.0377",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil || lat < -90 || lat > 90 {
				return fmt.Errorf("invalid latitude %q", args[0])
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil || lon < -180 || lon > 180 {
				return fmt.Errorf("invalid longitude %q", args[1])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Magnetic variation: %+.1f\n", geo.MagneticVariation(lat, lon, time.Now().UTC()))

			warnings := geo.CheckZones(code, lat, lon)
			if len(warnings) == 0 {
				fmt.Fprintln(out, "No permanent restricted airspace nearby")
				return nil
			}
			for _, w := range warnings {
				fmt.Fprintln(out, w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "Position", "Label used in the warnings")
	return cmd
}
