package main

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/lmpscraper/internal/config"
	"github.com/jgoulah/lmpscraper/internal/database"
	"github.com/jgoulah/lmpscraper/internal/oasis"
	"github.com/jgoulah/lmpscraper/internal/timeconv"
	"github.com/spf13/cobra"
)

var (
	listNode   string
	listMarket string
	listColumn string
	listSince  string
	listUntil  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored hourly prices",
	Long:  `Displays hourly LMP means stored in the database by fetch or resample.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listNode, "node", "", "filter by node")
	listCmd.Flags().StringVar(&listMarket, "market", "", "filter by market (DAM, RTM5, RTPD15)")
	listCmd.Flags().StringVar(&listColumn, "column", "", "filter by column (default: price_column from config)")
	listCmd.Flags().StringVar(&listSince, "since", "", "first local day to show (YYYYMMDD)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "last local day to show (YYYYMMDD)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	filter, err := buildFilter(cfg, listNode, listMarket, listColumn, listSince, listUntil)
	if err != nil {
		return err
	}

	// Open database
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	prices, err := db.ListPrices(filter)
	if err != nil {
		return fmt.Errorf("listing prices: %w", err)
	}

	if len(prices) == 0 {
		fmt.Println("No prices found")
		return nil
	}

	loc, err := timeconv.LoadZone(cfg.GetTimezone())
	if err != nil {
		return err
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%-16s  %-7s  %-22s  %-6s  %10s  %7s\n", "Node", "Market", "Hour", "Column", "Mean", "Samples")
	fmt.Println("----------------------------------------------------------------------")

	var sum float64
	var valid int
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, p := range prices {
		value := "NaN"
		if p.Valid {
			value = fmt.Sprintf("%.5f", p.Value)
			sum += p.Value
			valid++
			minVal = math.Min(minVal, p.Value)
			maxVal = math.Max(maxVal, p.Value)
		}
		fmt.Printf("%-16s  %-7s  %-22s  %-6s  %10s  %7d\n",
			p.Node, p.Market, p.HourStart.In(loc).Format("2006-01-02 15:04 MST"), p.Column, value, p.Samples)
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%s records, %s with data\n", humanize.Comma(int64(len(prices))), humanize.Comma(int64(valid)))
	if valid > 0 {
		fmt.Printf("Mean: %.5f  Min: %.5f  Max: %.5f\n", sum/float64(valid), minVal, maxVal)
	}

	return nil
}

// buildFilter turns command line filters into a database filter. since and
// until are local calendar days in the configured zone; until is inclusive.
func buildFilter(cfg *config.Config, node, market, column, since, until string) (database.Filter, error) {
	f := database.Filter{Node: node, Column: column}
	if f.Column == "" {
		f.Column = cfg.GetPriceColumn()
	}

	if market != "" {
		m, err := oasis.ParseMarket(market)
		if err != nil {
			return f, err
		}
		f.Market = m.String()
	}

	zone := cfg.GetTimezone()
	if since != "" {
		t, err := localDayStart(since, 0, zone)
		if err != nil {
			return f, fmt.Errorf("parsing --since: %w", err)
		}
		f.Since = t
	}
	if until != "" {
		t, err := localDayStart(until, 1, zone)
		if err != nil {
			return f, fmt.Errorf("parsing --until: %w", err)
		}
		f.Until = t
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && !f.Until.After(f.Since) {
		return f, fmt.Errorf("--since %s is after --until %s", since, until)
	}

	return f, nil
}

// localDayStart returns the UTC instant of local midnight, offset days after date
func localDayStart(date string, offset int, zone string) (time.Time, error) {
	day, err := oasis.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return timeconv.ToUTC(day.AddDate(0, 0, offset), zone)
}
