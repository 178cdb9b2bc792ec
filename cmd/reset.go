package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/driver"
)

var resetConfigFile string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the data cycle",
	Long:  "Truncate the filter, rule, and session tables of the configured channel. Standing rules and all behavioral counters are lost.",
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().StringVar(&resetConfigFile, "config", "configs/default.yaml", "Path to config YAML file")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(resetConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	drv, err := driver.Open(context.Background(), cfg.Driver.Type, cfg.Driver.Path, cfg.Driver.RedisURL)
	if err != nil {
		return fmt.Errorf("opening driver: %w", err)
	}
	defer drv.Close()

	drv.SetChannel(cfg.Channel)
	if err := drv.Rebuild(); err != nil {
		return fmt.Errorf("rebuilding data cycle: %w", err)
	}

	cmd.Printf("data cycle %q reset\n", cfg.Channel)
	return nil
}
