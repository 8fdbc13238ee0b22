package main

import (
	"fmt"

	"github.com/jgoulah/lmpscraper/internal/frame"
	"github.com/spf13/cobra"
)

var (
	resampleFlags runFlags
	resampleInput string
	resampleNoDB  bool
)

var resampleCmd = &cobra.Command{
	Use:   "resample",
	Short: "Resample a previously fetched raw CSV",
	Long: `Reads the raw CSV written by fetch (or the file given with --input) and rebuilds
the aggregated hourly CSV without contacting OASIS. Useful after changing the
time zone, year or price type.`,
	Args: cobra.NoArgs,
	RunE: runResample,
}

func init() {
	resampleFlags.register(resampleCmd)
	resampleCmd.Flags().StringVar(&resampleInput, "input", "", "raw CSV to read (default: the file fetch writes for this config)")
	resampleCmd.Flags().BoolVar(&resampleNoDB, "no-db", false, "do not store hourly values in the database")
	rootCmd.AddCommand(resampleCmd)
}

func runResample(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := resampleFlags.apply(cmd, cfg); err != nil {
		return err
	}

	params, err := resolveParams(cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	input := resampleInput
	if input == "" {
		input = params.rawPath()
	}

	fmt.Printf("Reading %s...\n", input)
	raw, err := frame.ReadCSVFile(input)
	if err != nil {
		return fmt.Errorf("reading raw data: %w", err)
	}

	res, err := aggregate(raw, params)
	if err != nil {
		return err
	}

	if resampleNoDB {
		return nil
	}
	return storeResult(res, params)
}
