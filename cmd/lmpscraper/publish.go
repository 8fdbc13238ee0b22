package main

import (
	"fmt"
	"time"

	"github.com/jgoulah/lmpscraper/internal/publisher"
	"github.com/jgoulah/lmpscraper/pkg/models"
	"github.com/spf13/cobra"
)

var (
	publishNode   string
	publishMarket string
	publishColumn string
	publishSince  string
	publishUntil  string
	publishAll    bool
	publishLimit  int
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish hourly prices to Home Assistant and/or MQTT",
	Long: `Reads stored hourly prices from the database and publishes them to Home Assistant
via its HTTP API and/or an MQTT broker. Hours without data are skipped.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishNode, "node", "", "node to publish (default: all nodes)")
	publishCmd.Flags().StringVar(&publishMarket, "market", "", "market to publish (default: all markets)")
	publishCmd.Flags().StringVar(&publishColumn, "column", "", "column to publish (default: price_column from config)")
	publishCmd.Flags().StringVar(&publishSince, "since", "", "only publish hours from this local day (YYYYMMDD)")
	publishCmd.Flags().StringVar(&publishUntil, "until", "", "only publish hours through this local day (YYYYMMDD)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all records (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	// Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	filter, err := buildFilter(cfg, publishNode, publishMarket, publishColumn, publishSince, publishUntil)
	if err != nil {
		return err
	}

	// Create publisher
	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	// Open database
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var prices []models.HourlyPrice
	if publishAll {
		prices, err = db.ListPrices(filter)
	} else {
		prices, err = db.ListUnpublishedPrices(filter)
	}
	if err != nil {
		return fmt.Errorf("listing prices: %w", err)
	}

	// Hours with no samples have nothing to publish
	valid := prices[:0]
	for _, p := range prices {
		if p.Valid {
			valid = append(valid, p)
		}
	}
	if skipped := len(prices) - len(valid); skipped > 0 {
		fmt.Printf("⚠ Skipping %d hours without data\n", skipped)
	}
	prices = valid

	if len(prices) == 0 {
		if publishAll {
			fmt.Println("No prices found")
		} else {
			fmt.Println("No unpublished prices found")
		}
		return nil
	}

	// Apply limit if specified
	if publishLimit > 0 && len(prices) > publishLimit {
		prices = prices[:publishLimit]
		fmt.Printf("Limiting to %d records (--limit flag)\n", publishLimit)
	}

	fmt.Printf("Publishing %d %s records...\n", len(prices), filter.Column)
	published := 0
	for i, p := range prices {
		fmt.Printf("[%d/%d] Publishing %s %s %s (%.5f)... ", i+1, len(prices),
			p.Node, p.Market, p.HourStart.Format("2006-01-02 15:04 MST"), p.Value)
		if err := pub.Publish(p); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}

		// Mark record as published in database
		if err := db.MarkPublished(p.ID); err != nil {
			fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Printf("✓\n")
		}
		published++
	}

	fmt.Printf("\nSuccessfully published %d/%d records\n", published, len(prices))
	return nil
}
