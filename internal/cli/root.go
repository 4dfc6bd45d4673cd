package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yegors/flightbrief/internal/config"
	"github.com/yegors/flightbrief/pkg/logger"
)

// NewRootCmd creates the root flightbrief command.
func NewRootCmd(version string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "flightbrief",
		Short:   "Airport flight briefings from live weather and notices",
		Version: version,
		Long: `flightbrief resolves an airport code, gathers METAR, TAF and NOTAM data
(falling back to the nearest reporting station), checks permanent restricted
airspace and asks a language model for a pilot briefing.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (searches configs/ and the working directory when empty)")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadWithFallback(configPath)
		if err != nil {
			return nil, fmt.Errorf("error loading configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(version, load),
		newResolveCmd(load),
		newNearestCmd(load),
		newZonesCmd(),
	)

	return root
}

type configLoader func() (*config.Config, error)

func newLogger(cfg config.LoggingConfig) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}
	return log, nil
}
