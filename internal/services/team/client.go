// Package team talks to the soil sensor AI team, the external workflow
// service that interprets sensor readings.
package team

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/soil_advisor/internal/model"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/breaker"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/metrics"
)

// StatusFinished is the only workflow status whose result can be used.
const StatusFinished = "FINISHED"

const defaultStartPath = "/teams/soil-sensor/start"

// WorkflowOutput is the reply of a team run. Result is any JSON value.
type WorkflowOutput struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// ResultString returns the result as text: a JSON string is unquoted, any
// other value is kept as compact JSON, a missing result is empty.
func (o WorkflowOutput) ResultString() string {
	raw := bytes.TrimSpace(o.Result)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// StatusError is a non-2xx reply of the team service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("team upstream status %d: %s", e.Code, e.Body)
}

func (e *StatusError) temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

type Config struct {
	BaseURL    string
	StartPath  string
	APIKey     string // sent as a bearer token when set
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration // first backoff interval

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration
}

// Runner starts a team workflow.
type Runner interface {
	Start(ctx context.Context, params model.SensorSessionParams) (WorkflowOutput, error)
}

type Client struct {
	http       *resty.Client
	path       string
	maxRetries int
	retryWait  time.Duration
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
}

var _ Runner = (*Client)(nil)

func NewClient(cfg Config, m *metrics.Metrics) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("team base url is empty")
	}
	path := cfg.StartPath
	if strings.TrimSpace(path) == "" {
		path = defaultStartPath
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = 200 * time.Millisecond
	}

	hc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		hc.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:       hc,
		path:       "/" + strings.TrimLeft(path, "/"),
		maxRetries: cfg.MaxRetries,
		retryWait:  retryWait,
		breaker: breaker.New(breaker.Settings{
			Name:         "soil-sensor-team",
			Failures:     cfg.BreakerFailures,
			OpenFor:      cfg.BreakerOpenFor,
			Interval:     cfg.BreakerInterval,
			IsSuccessful: isBreakerSuccess,
		}),
		metrics: m,
	}, nil
}

// Start runs the workflow for params. Network errors and 5xx replies are
// retried with exponential backoff; the whole attempt counts once for the
// circuit breaker.
func (c *Client) Start(ctx context.Context, params model.SensorSessionParams) (WorkflowOutput, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.startWithRetry(ctx, params)
	})
	c.metrics.Upstream("team", err)
	if err != nil {
		return WorkflowOutput{}, fmt.Errorf("team start: %w", err)
	}
	return res.(WorkflowOutput), nil
}

func (c *Client) startWithRetry(ctx context.Context, params model.SensorSessionParams) (WorkflowOutput, error) {
	log := logger.FromContext(ctx)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryWait
	bo.MaxElapsedTime = 0 // bounded by retries and ctx
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(max(c.maxRetries, 0))), ctx)

	var out WorkflowOutput
	err := backoff.RetryNotify(func() error {
		var err error
		out, err = c.startOnce(ctx, params)
		var se *StatusError
		if errors.As(err, &se) && !se.temporary() {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		log.Warn("team request failed, retrying", "err", err, "wait", wait)
	})
	return out, err
}

func (c *Client) startOnce(ctx context.Context, params model.SensorSessionParams) (WorkflowOutput, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(params).
		Post(c.path)
	if err != nil {
		return WorkflowOutput{}, fmt.Errorf("team request error: %w", err)
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 256 {
			body = body[:256]
		}
		return WorkflowOutput{}, &StatusError{Code: resp.StatusCode(), Body: body}
	}

	var out WorkflowOutput
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return WorkflowOutput{}, backoff.Permanent(fmt.Errorf("team decode error: %w", err))
	}
	return out, nil
}

func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && !se.temporary()
}
