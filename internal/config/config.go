package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Node           string        `yaml:"node"`
	Market         string        `yaml:"market"`                    // DAM, RTM or RTPD
	Resolution     string        `yaml:"resolution,omitempty"`      // "", "5" or "15"
	StartDate      string        `yaml:"start_date"`                // YYYYMMDD
	EndDate        string        `yaml:"end_date"`                  // YYYYMMDD
	Year           int           `yaml:"year,omitempty"`            // 0 keeps every year
	Timezone       string        `yaml:"timezone,omitempty"`        // fallback: US/Pacific
	ChunkDays      int           `yaml:"chunk_days,omitempty"`      // fallback: 10
	PriceType      string        `yaml:"price_type,omitempty"`      // fallback: LMP
	Dedupe         bool          `yaml:"dedupe,omitempty"`          // drop rows repeated at chunk edges
	OutputDir      string        `yaml:"output_dir,omitempty"`      // fallback: .
	BaseURL        string        `yaml:"base_url,omitempty"`        // fallback: OASIS SingleZip
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"` // 0 waits forever
	PriceColumn    string        `yaml:"price_column,omitempty"`    // column published; fallback: MW
	HomeAssistant  HAConfig      `yaml:"home_assistant,omitempty"`
	MQTT           MQTTConfig    `yaml:"mqtt,omitempty"`
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`       // e.g., "http://yourdomain.local:5050"
	Token    string `yaml:"token"`     // Long-lived access token
	EntityID string `yaml:"entity_id"` // e.g., "sensor.caiso_lmp"
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // fallback: caiso_lmp
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetMarket returns the market descriptor, e.g. "RTM5" or "DAM"
func (c *Config) GetMarket() string {
	if c.Market == "" {
		return "DAM"
	}
	return c.Market + c.Resolution
}

// GetTimezone returns the local zone used for resampling
func (c *Config) GetTimezone() string {
	if c.Timezone == "" {
		return "US/Pacific"
	}
	return c.Timezone
}

// GetChunkDays returns the request window in days with a default of 10
func (c *Config) GetChunkDays() int {
	if c.ChunkDays <= 0 {
		return 10
	}
	return c.ChunkDays
}

// GetPriceType returns the LMP_TYPE tag kept by the resampler
func (c *Config) GetPriceType() string {
	if c.PriceType == "" {
		return "LMP"
	}
	return c.PriceType
}

// GetOutputDir returns the directory CSV files are written to
func (c *Config) GetOutputDir() string {
	if c.OutputDir == "" {
		return "."
	}
	return c.OutputDir
}

// GetPriceColumn returns the aggregated column published to Home Assistant and MQTT
func (c *Config) GetPriceColumn() string {
	if c.PriceColumn == "" {
		return "MW"
	}
	return c.PriceColumn
}

// Validate checks the fields a fetch cannot run without
func (c *Config) Validate() error {
	if c.Node == "" {
		return fmt.Errorf("node is required")
	}
	if c.StartDate == "" || c.EndDate == "" {
		return fmt.Errorf("start_date and end_date are required (YYYYMMDD)")
	}
	return nil
}
