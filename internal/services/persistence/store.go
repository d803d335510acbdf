// Package persistence stores soil analyses in InfluxDB.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/soil_advisor/internal/model"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
)

type InfluxConfig struct {
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	Measurement  string        // default "soil_analysis"
	Lookback     time.Duration // query window, default 365 days
	Limit        int           // max rows per query, default 500
}

type Store struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	queryAPI    api.QueryAPI
	bucket      string
	measurement string
	lookback    time.Duration
	limit       int
}

func NewStore(cfg InfluxConfig) (*Store, error) {
	if cfg.InfluxURL == "" || cfg.InfluxToken == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, errors.New("influx config incomplete")
	}
	return NewStoreWithClient(influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken), cfg), nil
}

// NewStoreWithClient builds a store on an existing client.
func NewStoreWithClient(client influxdb2.Client, cfg InfluxConfig) *Store {
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "soil_analysis"
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = 365 * 24 * time.Hour
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 500
	}
	return &Store{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		queryAPI:    client.QueryAPI(cfg.InfluxOrg),
		bucket:      cfg.InfluxBucket,
		measurement: sanitizeMeasurement(measurement),
		lookback:    lookback,
		limit:       limit,
	}
}

func (s *Store) SaveSoilAnalysis(ctx context.Context, rec model.SensorReadingsWithInterpretation) error {
	point, err := ToPoint(s.measurement, rec)
	if err != nil {
		return err
	}
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("persistence: write error: %w", err)
	}
	logger.FromContext(ctx).Info("soil analysis stored",
		"measurement", s.measurement, "user", rec.Username, "farm", rec.FarmName, "id", rec.ID)
	return nil
}

// ListSoilAnalysis returns the analyses of username, newest first.
func (s *Store) ListSoilAnalysis(ctx context.Context, username string) ([]model.SensorReadingsWithInterpretation, error) {
	return s.query(ctx, buildFlux(s.bucket, s.measurement, username, "", s.lookback, s.limit))
}

// ListSoilAnalysisByFarm is ListSoilAnalysis restricted to one farm.
func (s *Store) ListSoilAnalysisByFarm(ctx context.Context, username, farmName string) ([]model.SensorReadingsWithInterpretation, error) {
	return s.query(ctx, buildFlux(s.bucket, s.measurement, username, farmName, s.lookback, s.limit))
}

// Ping reports whether InfluxDB answers.
func (s *Store) Ping(ctx context.Context) bool {
	ok, err := s.client.Ping(ctx)
	return err == nil && ok
}

func (s *Store) Close() { s.client.Close() }

func (s *Store) query(ctx context.Context, flux string) ([]model.SensorReadingsWithInterpretation, error) {
	res, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("persistence: query error: %w", err)
	}
	defer res.Close()

	out := make([]model.SensorReadingsWithInterpretation, 0)
	for res.Next() {
		rec := res.Record()
		out = append(out, FromValues(rec.Values(), rec.Time()))
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("persistence: iter error: %w", err)
	}
	return out, nil
}

// ToPoint maps an analysis to a point timestamped at its creation time.
func ToPoint(measurement string, rec model.SensorReadingsWithInterpretation) (*write.Point, error) {
	if rec.Username == "" {
		return nil, errors.New("persistence: username is required")
	}
	ts, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
	if err != nil {
		ts = time.Now().UTC()
	}

	tags := map[string]string{
		"username":  rec.Username,
		"farm_name": rec.FarmName,
	}
	if rec.CropType != "" {
		tags["crop_type"] = rec.CropType
	}
	if rec.SensorID != "" {
		tags["sensor_id"] = rec.SensorID
	}

	in := rec.Interpretation
	fields := map[string]interface{}{
		"id":                 rec.ID,
		"submitted_at":       rec.SubmittedAt,
		"fertility":          rec.Fertility,
		"moisture":           rec.Moisture,
		"ph":                 rec.PH,
		"temperature":        rec.Temperature,
		"sunlight":           rec.Sunlight,
		"humidity":           rec.Humidity,
		"interp_fertility":   in.Fertility,
		"interp_moisture":    in.Moisture,
		"interp_ph":          in.PH,
		"interp_temperature": in.Temperature,
		"interp_sunlight":    in.Sunlight,
		"interp_humidity":    in.Humidity,
		"interp_evaluation":  in.Evaluation,
	}
	return influxdb2.NewPoint(measurement, tags, fields, ts), nil
}

// FromValues rebuilds an analysis from a pivoted Flux row.
func FromValues(v map[string]interface{}, t time.Time) model.SensorReadingsWithInterpretation {
	var rec model.SensorReadingsWithInterpretation
	rec.ID = str(v["id"])
	rec.Username = str(v["username"])
	rec.FarmName = str(v["farm_name"])
	rec.CropType = str(v["crop_type"])
	rec.SensorID = str(v["sensor_id"])
	rec.Fertility = num(v["fertility"])
	rec.Moisture = num(v["moisture"])
	rec.PH = num(v["ph"])
	rec.Temperature = num(v["temperature"])
	rec.Sunlight = num(v["sunlight"])
	rec.Humidity = num(v["humidity"])
	rec.Interpretation = model.ParsedAdvice{
		Fertility:   str(v["interp_fertility"]),
		Moisture:    str(v["interp_moisture"]),
		PH:          str(v["interp_ph"]),
		Temperature: str(v["interp_temperature"]),
		Sunlight:    str(v["interp_sunlight"]),
		Humidity:    str(v["interp_humidity"]),
		Evaluation:  str(v["interp_evaluation"]),
	}
	rec.SubmittedAt = str(v["submitted_at"])
	if !t.IsZero() {
		rec.CreatedAt = t.UTC().Format(time.RFC3339Nano)
	}
	return rec
}

func buildFlux(bucket, measurement, username, farm string, lookback time.Duration, limit int) string {
	filter := fmt.Sprintf(`r._measurement == %s and r.username == %s`, fluxString(measurement), fluxString(username))
	if farm != "" {
		filter += fmt.Sprintf(` and r.farm_name == %s`, fluxString(farm))
	}
	return fmt.Sprintf(`
from(bucket: %s)
  |> range(start: -%ds)
  |> filter(fn: (r) => %s)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
`, fluxString(bucket), int64(lookback.Seconds()), filter, limit)
}

var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `${`, `\${`)

func fluxString(s string) string {
	return `"` + fluxEscaper.Replace(s) + `"`
}

func str(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func num(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return 0
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
