package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/soil_advisor/internal/advice"
	"github.com/LeonardoBeccarini/soil_advisor/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/soil_advisor/internal/services/persistence"
	"github.com/LeonardoBeccarini/soil_advisor/internal/services/soil"
	"github.com/LeonardoBeccarini/soil_advisor/internal/services/team"
	"github.com/LeonardoBeccarini/soil_advisor/internal/services/weather"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/auth"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/metrics"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/rabbitmq"
)

func main() {
	cfg := loadConfig()
	log := logger.Init(logger.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})

	if err := run(cfg); err != nil {
		log.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	log := logger.Default()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	mode, err := advice.ParseMode(cfg.AdviceParseMode)
	if err != nil {
		return err
	}
	m := metrics.New()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	teamClient, err := team.NewClient(team.Config{
		BaseURL:         cfg.TeamURL,
		APIKey:          cfg.TeamAPIKey,
		Timeout:         cfg.TeamTimeout,
		MaxRetries:      cfg.TeamMaxRetries,
		BreakerFailures: cfg.BreakerFailures,
		BreakerOpenFor:  cfg.BreakerOpenFor,
		BreakerInterval: cfg.BreakerInterval,
	}, m)
	if err != nil {
		return err
	}

	store, err := persistence.NewStore(persistence.InfluxConfig{
		InfluxURL:    cfg.InfluxURL,
		InfluxToken:  cfg.InfluxToken,
		InfluxOrg:    cfg.InfluxOrg,
		InfluxBucket: cfg.InfluxBucket,
		Measurement:  cfg.Measurement,
		Lookback:     cfg.Lookback,
		Limit:        cfg.QueryLimit,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	checks := map[string]app.Check{"influx": store.Ping}

	var publishers rabbitmq.PublisherFactory
	if cfg.MQTTHost != "" {
		client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
			Host:     cfg.MQTTHost,
			Port:     cfg.MQTTPort,
			User:     cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			ClientID: cfg.MQTTClientID,
		})
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer rabbitmq.CloseRabbitMQConn(client)
		publishers = rabbitmq.Factory(client)
		checks["mqtt"] = func(context.Context) bool { return mqttUp(client) }
	} else {
		log.Info("MQTT_HOST not set, soil analysis events disabled")
	}

	soilSvc, err := soil.NewService(soil.Config{
		Verifier:      tokens,
		Team:          teamClient,
		Store:         store,
		Normalizer:    advice.New(mode),
		Publishers:    publishers,
		TopicTemplate: cfg.TopicTemplate,
		Metrics:       m,
	})
	if err != nil {
		return err
	}

	weatherSvc := weather.NewService(weather.Config{
		BaseURL:         cfg.WeatherURL,
		APIKey:          cfg.WeatherAPIKey,
		CacheTTL:        cfg.WeatherCacheTTL,
		BreakerFailures: cfg.BreakerFailures,
		BreakerOpenFor:  cfg.BreakerOpenFor,
		BreakerInterval: cfg.BreakerInterval,
	}, m)

	gw := app.NewGateway(app.Config{
		Verifier:    tokens,
		HTTPTimeout: cfg.HTTPTimeout,
		Metrics:     m,
		Logger:      log,
		Checks:      checks,
	}, soilSvc, weatherSvc)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gw.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 2)
	go func() {
		log.Info("gRPC health listening", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		log.Info("gateway listening", "addr", srv.Addr, "parse_mode", mode.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
	}

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", "err", serr)
	}
	grpcSrv.GracefulStop()
	return err
}

func mqttUp(c mqtt.Client) bool {
	return c != nil && c.IsConnectionOpen()
}
