// Package sensor_simulator feeds the gateway with synthetic soil readings.
package sensor_simulator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/LeonardoBeccarini/soil_advisor/internal/model"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
)

const savePath = "/api/save-sensor-readings"

// Submitter sends one reading for analysis.
type Submitter interface {
	Submit(ctx context.Context, r model.SensorReadings) error
}

// GatewaySubmitter posts readings to the gateway with a bearer token.
type GatewaySubmitter struct {
	http *resty.Client
}

func NewGatewaySubmitter(baseURL, token string, timeout time.Duration) *GatewaySubmitter {
	return &GatewaySubmitter{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetAuthToken(token),
	}
}

func (s *GatewaySubmitter) Submit(ctx context.Context, r model.SensorReadings) error {
	var out model.SuccessMessage
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(model.SensorSessionParams{SensorData: r}).
		SetResult(&out).
		Post(savePath)
	if err != nil {
		return fmt.Errorf("submit reading: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("submit reading: gateway status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	logger.FromContext(ctx).Info("reading analysed", "farm", r.FarmName, "sensor", r.SensorID, "reply", out.Success)
	return nil
}

// Simulator is one virtual sensor installed on a farm.
type Simulator struct {
	Farm     string
	CropType string
	SensorID string

	generator *DataGenerator
	submitter Submitter
}

func NewSimulator(farm, cropType, sensorID string, gen *DataGenerator, sub Submitter) *Simulator {
	return &Simulator{Farm: farm, CropType: cropType, SensorID: sensorID, generator: gen, submitter: sub}
}

// Tick generates and submits a single reading.
func (s *Simulator) Tick(ctx context.Context) (model.SensorReadings, error) {
	r := s.generator.Next(s.Farm, s.CropType, s.SensorID)
	logger.FromContext(ctx).Debug("reading generated",
		"sensor", r.SensorID, "moisture", r.Moisture, "ph", r.PH, "temperature", r.Temperature)
	return r, s.submitter.Submit(ctx, r)
}

// Start submits a reading every interval until ctx is done or count readings
// were sent (count <= 0 means unbounded). Submission errors are logged.
func (s *Simulator) Start(ctx context.Context, interval time.Duration, count int) error {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for {
		if _, err := s.Tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Warn("reading not submitted", "sensor", s.SensorID, "err", err)
		}
		sent++
		if count > 0 && sent >= count {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
