package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Should apply defaults", func(t *testing.T) {
		t.Setenv("PORT", "")
		t.Setenv("MQTT_HOST", "")
		t.Setenv("ADVICE_PARSE_MODE", "")

		cfg := loadConfig()

		assert.Equal(t, "5009", cfg.Port)
		assert.Equal(t, "50051", cfg.GRPCPort)
		assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, 365*24*time.Hour, cfg.Lookback)
		assert.Equal(t, "event/soilAnalysis/{farm}", cfg.TopicTemplate)
		assert.Equal(t, "strict", cfg.AdviceParseMode)
		assert.Empty(t, cfg.MQTTHost)
	})

	t.Run("Should read overrides", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		t.Setenv("TEAM_MAX_RETRIES", "5")
		t.Setenv("WEATHER_CACHE_TTL_S", "30")
		t.Setenv("LOG_JSON", "true")
		t.Setenv("CB_OPEN_MS", "not-a-number")

		cfg := loadConfig()

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, 5, cfg.TeamMaxRetries)
		assert.Equal(t, 30*time.Second, cfg.WeatherCacheTTL)
		assert.True(t, cfg.LogJSON)
		assert.Equal(t, 10*time.Second, cfg.BreakerOpenFor)
	})
}
