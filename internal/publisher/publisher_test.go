package publisher

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/lmpscraper/internal/config"
	"github.com/jgoulah/lmpscraper/pkg/models"
)

func samplePrice() models.HourlyPrice {
	return models.HourlyPrice{
		Node:      "CONTADNA_1_N001",
		Market:    "RTM5",
		HourStart: time.Date(2016, 1, 1, 0, 0, 0, 0, time.FixedZone("PST", -8*3600)),
		Column:    "MW",
		Value:     21.25,
		Valid:     true,
		Samples:   12,
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.MQTTConfig{}, config.HAConfig{})
	assert.Error(t, err)

	_, err = New(config.MQTTConfig{}, config.HAConfig{Enabled: true, Token: "t", EntityID: "sensor.x"})
	assert.ErrorContains(t, err, "URL")

	_, err = New(config.MQTTConfig{}, config.HAConfig{Enabled: true, URL: "http://ha", EntityID: "sensor.x"})
	assert.ErrorContains(t, err, "token")

	_, err = New(config.MQTTConfig{}, config.HAConfig{Enabled: true, URL: "http://ha", Token: "t"})
	assert.ErrorContains(t, err, "entity_id")

	_, err = New(config.MQTTConfig{Enabled: true}, config.HAConfig{})
	assert.ErrorContains(t, err, "broker")
}

func TestPublish_HomeAssistant(t *testing.T) {
	var got HAPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appdaemon/backfill_state", r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	pub, err := New(config.MQTTConfig{}, config.HAConfig{Enabled: true, URL: srv.URL, Token: "secret", EntityID: "sensor.caiso_lmp"})
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(samplePrice()))

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "sensor.caiso_lmp", got.EntityID)
	assert.Equal(t, "21.25000", got.State)
	assert.Equal(t, "2016-01-01T00:00:00-08:00", got.LastChanged)
	assert.Equal(t, got.LastChanged, got.LastUpdated)
}

func TestPublish_HomeAssistantError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	pub, err := New(config.MQTTConfig{}, config.HAConfig{Enabled: true, URL: srv.URL, Token: "x", EntityID: "sensor.x"})
	require.NoError(t, err)

	err = pub.Publish(samplePrice())
	assert.ErrorContains(t, err, "status 401")
}

func TestPublish_InvalidPrice(t *testing.T) {
	pub, err := New(config.MQTTConfig{}, config.HAConfig{Enabled: true, URL: "http://127.0.0.1:0", Token: "x", EntityID: "sensor.x"})
	require.NoError(t, err)

	price := samplePrice()
	price.Valid = false
	assert.ErrorContains(t, pub.Publish(price), "no value")
}

func TestTopic(t *testing.T) {
	pub := &Publisher{topicPrefix: defaultTopicPrefix}
	assert.Equal(t, "caiso_lmp/CONTADNA_1_N001/RTM5/MW", pub.Topic(samplePrice()))
}
