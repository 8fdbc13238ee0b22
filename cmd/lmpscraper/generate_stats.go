package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jgoulah/lmpscraper/internal/config"
	"github.com/spf13/cobra"
)

var generateStatsCmd = &cobra.Command{
	Use:   "generate-stats",
	Short: "Generate statistics in Home Assistant from backfilled prices",
	Long:  `Calls the AppDaemon endpoint that compiles long-term statistics from the hourly price states written by publish.`,
	Args:  cobra.NoArgs,
	RunE:  runGenerateStats,
}

func init() {
	rootCmd.AddCommand(generateStatsCmd)
}

// statsResult is the AppDaemon generate_statistics response
type statsResult struct {
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	TotalHours int `json:"total_hours"`
}

func runGenerateStats(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Generate Statistics started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	// Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Printf("Generating statistics for %s...\n", cfg.HomeAssistant.EntityID)
	res, err := generateStats(&http.Client{Timeout: 60 * time.Second}, cfg.HomeAssistant)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Statistics generated successfully\n")
	fmt.Printf("  - Inserted: %d new statistics records\n", res.Inserted)
	fmt.Printf("  - Updated: %d existing statistics records\n", res.Updated)
	fmt.Printf("  - Total hours: %d\n", res.TotalHours)
	return nil
}

func generateStats(client *http.Client, ha config.HAConfig) (*statsResult, error) {
	if !ha.Enabled {
		return nil, fmt.Errorf("Home Assistant is not enabled in config")
	}

	apiURL := strings.TrimRight(ha.URL, "/") + "/api/appdaemon/generate_statistics"
	body, err := json.Marshal(map[string]string{"entity_id": ha.EntityID})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ha.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	var res statsResult
	if err := json.Unmarshal(respBody, &res); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &res, nil
}
