// Package soil runs a soil analysis end to end: token check, team workflow,
// advice normalization, persistence and event publication.
package soil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/soil_advisor/internal/advice"
	"github.com/LeonardoBeccarini/soil_advisor/internal/model"
	"github.com/LeonardoBeccarini/soil_advisor/internal/services/team"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/auth"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/metrics"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/rabbitmq"
)

const successMessage = "Soil Analysis successful"

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrWorkflowBlocked = errors.New("workflow blocked")
	ErrAnalysisFailed  = errors.New("failed to process sensor analysis")
)

// Store persists analyses and lists them newest first.
type Store interface {
	SaveSoilAnalysis(ctx context.Context, rec model.SensorReadingsWithInterpretation) error
	ListSoilAnalysis(ctx context.Context, username string) ([]model.SensorReadingsWithInterpretation, error)
	ListSoilAnalysisByFarm(ctx context.Context, username, farmName string) ([]model.SensorReadingsWithInterpretation, error)
}

type Config struct {
	Verifier   auth.Verifier
	Team       team.Runner
	Store      Store
	Normalizer advice.Normalizer

	// Publishers and TopicTemplate are optional; without them no events are sent.
	Publishers    rabbitmq.PublisherFactory
	TopicTemplate string

	Metrics *metrics.Metrics
	Now     func() time.Time
}

type Service struct {
	verifier   auth.Verifier
	team       team.Runner
	store      Store
	normalizer advice.Normalizer
	publishers rabbitmq.PublisherFactory
	topic      string
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Verifier == nil || cfg.Team == nil || cfg.Store == nil {
		return nil, errors.New("soil service: verifier, team and store are required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	topic := cfg.TopicTemplate
	if topic == "" {
		topic = "event/soilAnalysis/{farm}"
	}
	return &Service{
		verifier:   cfg.Verifier,
		team:       cfg.Team,
		store:      cfg.Store,
		normalizer: cfg.Normalizer,
		publishers: cfg.Publishers,
		topic:      topic,
		metrics:    cfg.Metrics,
		now:        now,
	}, nil
}

func (s *Service) authenticate(ctx context.Context, token string) (string, error) {
	username, err := s.verifier.VerifyAccessToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return username, nil
}

// Analyze interprets params through the team workflow and stores the result
// for the token's user.
func (s *Service) Analyze(ctx context.Context, token string, params model.SensorSessionParams) (model.SuccessMessage, error) {
	username, err := s.authenticate(ctx, token)
	if err != nil {
		return model.SuccessMessage{}, err
	}
	log := logger.FromContext(ctx).With("user", username, "farm", params.SensorData.FarmName)

	rec, err := s.analyze(ctx, username, params)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrWorkflowBlocked) {
			outcome = "blocked"
		}
		s.countAnalysis(outcome)
		log.Error("soil analysis failed", "err", err)
		return model.SuccessMessage{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	s.countAnalysis("ok")

	s.publish(ctx, rec)
	return model.SuccessMessage{Success: successMessage}, nil
}

func (s *Service) analyze(ctx context.Context, username string, params model.SensorSessionParams) (model.SensorReadingsWithInterpretation, error) {
	log := logger.FromContext(ctx)

	out, err := s.team.Start(ctx, params)
	if err != nil {
		return model.SensorReadingsWithInterpretation{}, err
	}
	if out.Status != team.StatusFinished {
		return model.SensorReadingsWithInterpretation{}, fmt.Errorf("%w: status %q", ErrWorkflowBlocked, out.Status)
	}

	interpretation, source := s.normalizer.ParseWithSource(out.ResultString())
	if s.metrics != nil {
		s.metrics.AdviceParsed.WithLabelValues(string(source)).Inc()
	}
	log.Info("sensor interpretation", "source", source, "interpretation", interpretation.RecognizedJSON())

	now := s.now().UTC().Format(time.RFC3339Nano)
	rec := model.SensorReadingsWithInterpretation{
		SensorReadings: params.SensorData,
		ID:             uuid.NewString(),
		Username:       username,
		Interpretation: interpretation,
		SubmittedAt:    now,
		CreatedAt:      now,
	}
	if err := s.store.SaveSoilAnalysis(ctx, rec); err != nil {
		return model.SensorReadingsWithInterpretation{}, err
	}
	return rec, nil
}

// publish is best effort: a failure is logged and the analysis still succeeds.
func (s *Service) publish(ctx context.Context, rec model.SensorReadingsWithInterpretation) {
	if s.publishers == nil {
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
	if err != nil {
		ts = s.now().UTC()
	}
	evt := model.SoilAnalysisEvent{
		ID:         rec.ID,
		Username:   rec.Username,
		FarmName:   rec.FarmName,
		SensorID:   rec.SensorID,
		Evaluation: rec.Interpretation.Evaluation,
		Timestamp:  ts,
	}
	topic := rabbitmq.Topic(s.topic, map[string]string{
		"farm":   rec.FarmName,
		"user":   rec.Username,
		"sensor": rec.SensorID,
	})
	if err := s.publishers(topic).PublishMessage(evt); err != nil {
		logger.FromContext(ctx).Warn("soil analysis event not published", "topic", topic, "err", err)
	}
}

// List returns the stored analyses of the token's user.
func (s *Service) List(ctx context.Context, token string) ([]model.SensorReadingsWithInterpretation, error) {
	username, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	out, err := s.store.ListSoilAnalysis(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list soil analysis: %w", err)
	}
	return out, nil
}

// ListByFarm is List restricted to one farm.
func (s *Service) ListByFarm(ctx context.Context, token, farmName string) ([]model.SensorReadingsWithInterpretation, error) {
	username, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	out, err := s.store.ListSoilAnalysisByFarm(ctx, username, farmName)
	if err != nil {
		return nil, fmt.Errorf("list soil analysis for %s: %w", farmName, err)
	}
	return out, nil
}

func (s *Service) countAnalysis(outcome string) {
	if s.metrics != nil {
		s.metrics.Analyses.WithLabelValues(outcome).Inc()
	}
}
