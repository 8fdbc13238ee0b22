package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jgoulah/lmpscraper/internal/config"
	"github.com/jgoulah/lmpscraper/internal/database"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "lmpscraper",
	Short: "Download CAISO locational marginal prices and resample them hourly",
	Long: `LMPScraper is a CLI tool to collect locational marginal price (LMP) data from the
California ISO OASIS API. It downloads a node's prices in date chunks, converts GMT
intervals to a local time zone, averages them per hour and writes CSV files. Hourly
prices are also kept in a local SQLite database for listing and publishing.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "data.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}
