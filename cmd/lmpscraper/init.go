package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jgoulah/lmpscraper/internal/config"
	"github.com/jgoulah/lmpscraper/internal/oasis"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Writes a config file for the node and date range given on the command line.
Values not given fall back to the defaults fetch uses.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initFlags runFlags

func init() {
	initFlags.register(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := starterConfig(time.Now())
	if err := initFlags.apply(cmd, cfg); err != nil {
		return err
	}
	if _, err := resolveParams(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("✓ Wrote %s\n", path)
	return nil
}

// starterConfig covers the calendar year before now
func starterConfig(now time.Time) *config.Config {
	year := now.Year() - 1
	return &config.Config{
		Market:    "DAM",
		StartDate: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format(oasis.DateLayout),
		EndDate:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC).Format(oasis.DateLayout),
		Year:      year,
		Timezone:  "US/Pacific",
		ChunkDays: oasis.DefaultChunkDays,
		PriceType: "LMP",
	}
}
