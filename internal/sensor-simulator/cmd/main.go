package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	sensorSimulator "github.com/LeonardoBeccarini/soil_advisor/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/auth"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
)

type flags struct {
	gateway   string
	token     string
	jwtSecret string
	jwtIssuer string
	username  string
	farm      string
	cropType  string
	sensorID  string
	interval  time.Duration
	count     int
	lat, lon  float64
	halfLife  time.Duration
	seed      int64
	logLevel  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "sensor-sim",
		Short:         "Submit synthetic soil readings to the gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.gateway, "gateway", "http://localhost:5009", "gateway base URL")
	fs.StringVar(&f.token, "token", os.Getenv("SIM_TOKEN"), "access token sent as bearer")
	fs.StringVar(&f.jwtSecret, "jwt-secret", os.Getenv("JWT_SECRET"), "issue a token locally when --token is empty")
	fs.StringVar(&f.jwtIssuer, "jwt-issuer", os.Getenv("JWT_ISSUER"), "issuer of locally issued tokens")
	fs.StringVar(&f.username, "username", "farmer1", "username of locally issued tokens")
	fs.StringVar(&f.farm, "farm", "farm1", "farm name")
	fs.StringVar(&f.cropType, "crop", "", "crop type")
	fs.StringVar(&f.sensorID, "sensor-id", "sensor1", "unique sensor identifier")
	fs.DurationVar(&f.interval, "interval", time.Minute, "submit interval")
	fs.IntVar(&f.count, "count", 0, "stop after this many readings (0 = run until interrupted)")
	fs.Float64Var(&f.lat, "lat", 41.51109, "latitude used to seed moisture from SoilGrids")
	fs.Float64Var(&f.lon, "lon", 12.37007, "longitude used to seed moisture from SoilGrids")
	fs.DurationVar(&f.halfLife, "half-life", 48*time.Hour, "moisture half-life without rain")
	fs.Int64Var(&f.seed, "seed", time.Now().UnixNano(), "random seed")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level")
	return cmd
}

func run(ctx context.Context, f flags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Init(logger.Config{Level: f.logLevel})
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	token := f.token
	if token == "" {
		if f.jwtSecret == "" {
			return errors.New("either --token or --jwt-secret is required")
		}
		ts, err := auth.NewTokenService(f.jwtSecret, f.jwtIssuer)
		if err != nil {
			return err
		}
		if token, err = ts.IssueAccessToken(f.username, 24*time.Hour); err != nil {
			return err
		}
	}

	if f.halfLife <= 0 || f.interval <= 0 {
		return errors.New("--half-life and --interval must be positive")
	}
	decay := math.Ln2 / f.halfLife.Minutes()
	gen := sensorSimulator.NewDataGenerator(decay, sensorSimulator.DefaultBaseline, f.seed)
	gen.SeedFromSoilGrids(ctx, f.lat, f.lon)

	sub := sensorSimulator.NewGatewaySubmitter(f.gateway, token, 2*f.interval+30*time.Second)
	sim := sensorSimulator.NewSimulator(f.farm, f.cropType, f.sensorID, gen, sub)

	log.Info("simulator started", "farm", f.farm, "sensor", f.sensorID, "interval", f.interval, "gateway", f.gateway)
	return sim.Start(ctx, f.interval, f.count)
}
