package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GRPCPort    string
	HTTPTimeout time.Duration

	JWTSecret string
	JWTIssuer string

	TeamURL        string
	TeamAPIKey     string
	TeamTimeout    time.Duration
	TeamMaxRetries int

	WeatherURL      string
	WeatherAPIKey   string
	WeatherCacheTTL time.Duration

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	Measurement  string
	Lookback     time.Duration
	QueryLimit   int

	// events are disabled when MQTTHost is empty
	MQTTHost      string
	MQTTPort      int
	MQTTUser      string
	MQTTPassword  string
	MQTTClientID  string
	TopicTemplate string

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	AdviceParseMode string
	LogLevel        string
	LogJSON         bool
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return d
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// loadConfig reads the environment, after loading .env when present.
func loadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Port:        getenv("PORT", "5009"),
		GRPCPort:    getenv("GRPC_PORT", "50051"),
		HTTPTimeout: ms(getenvInt("HTTP_TIMEOUT_MS", 10000)),

		JWTSecret: getenv("JWT_SECRET", ""),
		JWTIssuer: getenv("JWT_ISSUER", ""),

		TeamURL:        getenv("TEAM_URL", "http://localhost:8000"),
		TeamAPIKey:     getenv("TEAM_API_KEY", ""),
		TeamTimeout:    ms(getenvInt("TEAM_TIMEOUT_MS", 60000)),
		TeamMaxRetries: getenvInt("TEAM_MAX_RETRIES", 3),

		WeatherURL:      getenv("WEATHER_URL", "http://api.weatherapi.com"),
		WeatherAPIKey:   getenv("WEATHER_API_KEY", ""),
		WeatherCacheTTL: time.Duration(getenvInt("WEATHER_CACHE_TTL_S", 600)) * time.Second,

		InfluxURL:    getenv("INFLUX_URL", "http://influxdb:8086"),
		InfluxToken:  getenv("INFLUX_TOKEN", ""),
		InfluxOrg:    getenv("INFLUX_ORG", "soil"),
		InfluxBucket: getenv("INFLUX_BUCKET", "soil"),
		Measurement:  getenv("MEASUREMENT", "soil_analysis"),
		Lookback:     time.Duration(getenvInt("ANALYSIS_LOOKBACK_DAYS", 365)) * 24 * time.Hour,
		QueryLimit:   getenvInt("ANALYSIS_QUERY_LIMIT", 500),

		MQTTHost:      getenv("MQTT_HOST", ""),
		MQTTPort:      getenvInt("MQTT_PORT", 1883),
		MQTTUser:      getenv("MQTT_USER", "guest"),
		MQTTPassword:  getenv("MQTT_PASSWORD", "guest"),
		MQTTClientID:  getenv("MQTT_CLIENT_ID", "soil-gateway"),
		TopicTemplate: getenv("ANALYSIS_TOPIC_TEMPLATE", "event/soilAnalysis/{farm}"),

		BreakerFailures: getenvInt("CB_FAILS", 3),
		BreakerOpenFor:  ms(getenvInt("CB_OPEN_MS", 10000)),
		BreakerInterval: ms(getenvInt("CB_INTERVAL_MS", 0)),

		AdviceParseMode: getenv("ADVICE_PARSE_MODE", "strict"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogJSON:         getenvBool("LOG_JSON", false),
	}
}
