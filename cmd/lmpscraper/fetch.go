package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jgoulah/lmpscraper/internal/oasis"
	"github.com/spf13/cobra"
)

var (
	fetchFlags     runFlags
	fetchChunkDays int
	fetchDedupe    bool
	fetchNoDB      bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch LMP data from OASIS and resample it hourly",
	Long: `Downloads LMP data for one node from the CAISO OASIS API in fixed day chunks,
writes every retrieved row to a raw CSV, averages the total LMP rows per local hour
for the configured year and writes the result to an aggregated CSV.

The raw CSV holds every LMP_TYPE OASIS returned (LMP, MCC, MCE, MCL ...), not
just the total LMP rows used for the hourly means, so resample can rebuild the
aggregate for another price_type without fetching again.

Hourly values are also stored in the local SQLite database unless --no-db is given.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchFlags.register(fetchCmd)
	fetchCmd.Flags().IntVar(&fetchChunkDays, "chunk-days", 0, "days per OASIS request (overrides config)")
	fetchCmd.Flags().BoolVar(&fetchDedupe, "dedupe", false, "drop rows repeated at chunk boundaries (overrides config)")
	fetchCmd.Flags().BoolVar(&fetchNoDB, "no-db", false, "do not store hourly values in the database")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Fetch started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	// Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := fetchFlags.apply(cmd, cfg); err != nil {
		return err
	}
	if cmd.Flags().Changed("chunk-days") {
		cfg.ChunkDays = fetchChunkDays
	}
	if cmd.Flags().Changed("dedupe") {
		cfg.Dedupe = fetchDedupe
	}

	params, err := resolveParams(cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client := oasis.NewClient(cfg.BaseURL, cfg.GetChunkDays())
	client.SetTimeout(cfg.RequestTimeout)
	client.SetDedupe(cfg.Dedupe)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Fetching %s prices for %s from %s to %s (%d-day chunks)...\n",
		params.market, params.node, params.startDate, params.endDate, cfg.GetChunkDays())
	raw, err := client.FetchRange(ctx, params.start, params.end, params.node, params.market)
	if err != nil {
		return fmt.Errorf("fetching LMP data: %w", err)
	}

	if err := writeCSV(raw, params.rawPath()); err != nil {
		return err
	}

	res, err := aggregate(raw, params)
	if err != nil {
		return err
	}

	if fetchNoDB {
		return nil
	}
	return storeResult(res, params)
}
