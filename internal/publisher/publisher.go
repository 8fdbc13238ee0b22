package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jgoulah/lmpscraper/internal/config"
	"github.com/jgoulah/lmpscraper/pkg/models"
)

const defaultTopicPrefix = "caiso_lmp"

// Publisher pushes hourly prices to Home Assistant and/or an MQTT broker
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client
}

// New creates a new publisher (supports both MQTT and HA HTTP API)
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig) (*Publisher, error) {
	if !mqttCfg.Enabled && !haCfg.Enabled {
		return nil, fmt.Errorf("neither Home Assistant nor MQTT is enabled in config")
	}

	// Validate HA config if enabled
	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		if haCfg.EntityID == "" {
			return nil, fmt.Errorf("Home Assistant entity_id is required when enabled")
		}
	}

	var client mqtt.Client
	topicPrefix := mqttCfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = defaultTopicPrefix
	}

	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		// Configure MQTT client options
		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID("lmpscraper-" + uuid.NewString()[:8])
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		// Create and connect client
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
		}
	}

	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		haConfig:    haCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// HAPayload matches the Home Assistant backfill service call data
type HAPayload struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
	LastUpdated string `json:"last_updated"`
}

// MQTTPayload is the JSON body published per hourly price
type MQTTPayload struct {
	Node      string  `json:"node"`
	Market    string  `json:"market"`
	HourStart string  `json:"hour_start"`
	Column    string  `json:"column"`
	Value     float64 `json:"value"`
	Samples   int     `json:"samples"`
}

// Topic returns the MQTT topic a price is published on
func (p *Publisher) Topic(price models.HourlyPrice) string {
	return strings.Join([]string{p.topicPrefix, price.Node, price.Market, price.Column}, "/")
}

// Publish sends one hourly price to every enabled sink
func (p *Publisher) Publish(price models.HourlyPrice) error {
	if !price.Valid {
		return fmt.Errorf("no value for %s (no samples in hour)", price.HourStart.Format(time.RFC3339))
	}

	if p.haConfig.Enabled {
		if err := p.publishHA(price); err != nil {
			return fmt.Errorf("publishing to Home Assistant: %w", err)
		}
	}

	if p.client != nil {
		if err := p.publishMQTT(price); err != nil {
			return fmt.Errorf("publishing to MQTT: %w", err)
		}
	}

	return nil
}

func (p *Publisher) publishHA(price models.HourlyPrice) error {
	// Build the full API URL (AppDaemon API endpoint)
	apiURL := fmt.Sprintf("%s/api/appdaemon/backfill_state", p.haConfig.URL)

	timestamp := price.HourStart.Format(time.RFC3339)
	payload := HAPayload{
		EntityID:    p.haConfig.EntityID,
		State:       fmt.Sprintf("%.5f", price.Value),
		LastChanged: timestamp,
		LastUpdated: timestamp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequest("POST", apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read error response body for debugging
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func (p *Publisher) publishMQTT(price models.HourlyPrice) error {
	body, err := json.Marshal(MQTTPayload{
		Node:      price.Node,
		Market:    price.Market,
		HourStart: price.HourStart.Format(time.RFC3339),
		Column:    price.Column,
		Value:     price.Value,
		Samples:   price.Samples,
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	token := p.client.Publish(p.Topic(price), 1, false, body)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("timed out publishing to %s", p.Topic(price))
	}
	return token.Error()
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
