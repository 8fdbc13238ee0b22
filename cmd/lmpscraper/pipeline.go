package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/lmpscraper/internal/config"
	"github.com/jgoulah/lmpscraper/internal/database"
	"github.com/jgoulah/lmpscraper/internal/frame"
	"github.com/jgoulah/lmpscraper/internal/oasis"
	"github.com/jgoulah/lmpscraper/internal/resample"
	"github.com/jgoulah/lmpscraper/pkg/models"
	"github.com/spf13/cobra"
)

// runParams is the resolved input of one retrieval run
type runParams struct {
	node      string
	market    oasis.Market
	startDate string
	endDate   string
	start     time.Time
	end       time.Time
	year      int
	timezone  string
	priceType string
	outputDir string
}

// runFlags are shared by fetch and resample; set flags win over config values
type runFlags struct {
	node      string
	market    string
	start     string
	end       string
	year      int
	timezone  string
	outputDir string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.node, "node", "", "OASIS node id (overrides config)")
	cmd.Flags().StringVar(&f.market, "market", "", "market descriptor: DAM, RTM5 or RTPD15 (overrides config)")
	cmd.Flags().StringVar(&f.start, "start", "", "start date YYYYMMDD (overrides config)")
	cmd.Flags().StringVar(&f.end, "end", "", "end date YYYYMMDD (overrides config)")
	cmd.Flags().IntVar(&f.year, "year", 0, "keep only this local year in the aggregated output (overrides config)")
	cmd.Flags().StringVar(&f.timezone, "tz", "", "local time zone (overrides config)")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "directory for CSV files (overrides config)")
}

// apply copies every flag the user set onto cfg
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("node") {
		cfg.Node = f.node
	}
	if cmd.Flags().Changed("market") {
		m, err := oasis.ParseMarket(f.market)
		if err != nil {
			return err
		}
		cfg.Market = m.Code
		cfg.Resolution = m.Resolution
	}
	if cmd.Flags().Changed("start") {
		cfg.StartDate = f.start
	}
	if cmd.Flags().Changed("end") {
		cfg.EndDate = f.end
	}
	if cmd.Flags().Changed("year") {
		cfg.Year = f.year
	}
	if cmd.Flags().Changed("tz") {
		cfg.Timezone = f.timezone
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	return nil
}

// resolveParams validates cfg and parses its dates and market
func resolveParams(cfg *config.Config) (*runParams, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	market, err := oasis.ParseMarket(cfg.GetMarket())
	if err != nil {
		return nil, err
	}

	start, err := oasis.ParseDate(cfg.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := oasis.ParseDate(cfg.EndDate)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("start date %s must be before end date %s", cfg.StartDate, cfg.EndDate)
	}

	return &runParams{
		node:      cfg.Node,
		market:    market,
		startDate: cfg.StartDate,
		endDate:   cfg.EndDate,
		start:     start,
		end:       end,
		year:      cfg.Year,
		timezone:  cfg.GetTimezone(),
		priceType: cfg.GetPriceType(),
		outputDir: cfg.GetOutputDir(),
	}, nil
}

// rawPath names the CSV holding every retrieved row
func (p *runParams) rawPath() string {
	name := fmt.Sprintf("%s_LMP_%s_%s_%s.csv", p.node, p.market, p.startDate, p.endDate)
	return filepath.Join(p.outputDir, name)
}

// aggregatedPath names the CSV holding the hourly means
func (p *runParams) aggregatedPath() string {
	year := "all"
	if p.year != 0 {
		year = fmt.Sprint(p.year)
	}
	name := fmt.Sprintf("%s_LMP_%s_%saggregated.csv", p.node, p.market, year)
	return filepath.Join(p.outputDir, name)
}

// aggregate resamples raw, writes the aggregated CSV and returns the result
func aggregate(raw *frame.Table, p *runParams) (*resample.Result, error) {
	res, err := resample.Hourly(raw, resample.Options{
		PriceType: p.priceType,
		Zone:      p.timezone,
		Year:      p.year,
	})
	if err != nil {
		return nil, fmt.Errorf("resampling: %w", err)
	}

	if len(res.Rows) == 0 {
		fmt.Printf("⚠ No %s rows left after filtering (year %d)\n", p.priceType, p.year)
	}

	path := p.aggregatedPath()
	if err := writeCSV(res.Table(), path); err != nil {
		return nil, err
	}
	return res, nil
}

// writeCSV writes tbl to path and reports its size
func writeCSV(tbl *frame.Table, path string) error {
	if err := tbl.WriteCSVFile(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	size := "?"
	if info, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	fmt.Printf("✓ Wrote %s rows to %s (%s)\n", humanize.Comma(int64(tbl.Len())), path, size)
	return nil
}

// toHourlyPrices flattens a result into one record per hour and column
func toHourlyPrices(res *resample.Result, node string, market oasis.Market) []models.HourlyPrice {
	prices := make([]models.HourlyPrice, 0, len(res.Rows)*len(res.Columns))
	for _, row := range res.Rows {
		for j, col := range res.Columns {
			p := models.HourlyPrice{
				Node:      node,
				Market:    market.String(),
				HourStart: row.Start,
				Column:    col,
				Samples:   row.Samples[j],
			}
			if row.Samples[j] > 0 {
				p.Value = row.Means[j]
				p.Valid = true
			}
			prices = append(prices, p)
		}
	}
	return prices
}

// storeResult upserts the aggregated prices into the database
func storeResult(res *resample.Result, p *runParams) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return storeResultIn(db, res, p)
}

func storeResultIn(db *database.DB, res *resample.Result, p *runParams) error {
	n, err := db.UpsertPrices(toHourlyPrices(res, p.node, p.market))
	if err != nil {
		return fmt.Errorf("storing prices: %w", err)
	}
	fmt.Printf("✓ Stored %s hourly values in database\n", humanize.Comma(int64(n)))
	return nil
}
