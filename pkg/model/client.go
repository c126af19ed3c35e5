// Package model provides the HTTP client for the external diabetes
// classification model service.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/diapredict-server/internal/domain"
)

// Config represents configuration for the prediction model client.
type Config struct {
	BaseURL            string        `json:"base_url"`
	Timeout            time.Duration `json:"timeout"`
	CacheSize          int           `json:"cache_size"`
	BreakerMaxRequests uint32        `json:"breaker_max_requests"`
	BreakerInterval    time.Duration `json:"breaker_interval"`
	BreakerTimeout     time.Duration `json:"breaker_timeout"`
}

// HTTPPredictor calls the model service over HTTP. Identical feature
// vectors hit an in-process LRU cache, and a circuit breaker shields the
// service when it degrades.
type HTTPPredictor struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      *lru.Cache[string, domain.PredictionResult]
	logger     *logrus.Logger
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Label       int      `json:"label"`
	Probability *float64 `json:"probability,omitempty"`
}

// NewHTTPPredictor creates a prediction client against the model service.
func NewHTTPPredictor(config Config, logger *logrus.Logger) (*HTTPPredictor, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("model base URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.CacheSize == 0 {
		config.CacheSize = 512
	}
	if config.BreakerMaxRequests == 0 {
		config.BreakerMaxRequests = 5
	}
	if config.BreakerInterval == 0 {
		config.BreakerInterval = 30 * time.Second
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = 60 * time.Second
	}

	cache, err := lru.New[string, domain.PredictionResult](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PredictionModel",
		MaxRequests: config.BreakerMaxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &HTTPPredictor{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		breaker: breaker,
		cache:   cache,
		logger:  logger,
	}, nil
}

// Predict classifies the patient metrics. Cached results are served without
// touching the model service.
func (p *HTTPPredictor) Predict(ctx context.Context, metrics *domain.PatientMetrics) (*domain.PredictionResult, error) {
	key := cacheKey(metrics.FeatureVector())
	if cached, ok := p.cache.Get(key); ok {
		p.logger.WithField("cache_key", key).Debug("Prediction served from cache")
		result := cached
		return &result, nil
	}

	raw, err := p.breaker.Execute(func() (interface{}, error) {
		return p.predict(ctx, metrics)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ModelError{Endpoint: p.baseURL, Err: fmt.Errorf("circuit breaker open: %w", err)}
		}
		return nil, &domain.ModelError{Endpoint: p.baseURL, Err: err}
	}

	result := raw.(*domain.PredictionResult)
	p.cache.Add(key, *result)
	return result, nil
}

func (p *HTTPPredictor) predict(ctx context.Context, metrics *domain.PatientMetrics) (*domain.PredictionResult, error) {
	body, err := json.Marshal(predictRequest{Features: metrics.FeatureVector()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction request: %w", err)
	}

	endpoint := p.baseURL + "/predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("model service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode prediction response: %w", err)
	}

	return buildResult(decoded)
}

// buildResult maps the wire response to the domain result. The model reports
// the probability of the positive class; the stored confidence is the
// probability of whichever label was predicted.
func buildResult(resp predictResponse) (*domain.PredictionResult, error) {
	var label domain.PredictionLabel
	switch resp.Label {
	case 0:
		label = domain.PredictionNegative
	case 1:
		label = domain.PredictionPositive
	default:
		return nil, fmt.Errorf("model returned unknown label %d", resp.Label)
	}

	result := &domain.PredictionResult{Label: label}
	if resp.Probability != nil {
		prob := *resp.Probability
		if prob < 0 || prob > 1 {
			return nil, fmt.Errorf("model returned probability %g outside [0, 1]", prob)
		}
		confidence := prob
		if label == domain.PredictionNegative {
			confidence = 1 - prob
		}
		result.Confidence = &confidence
	}

	return result, nil
}

// CacheLen reports the number of cached predictions.
func (p *HTTPPredictor) CacheLen() int {
	return p.cache.Len()
}

// BreakerState reports the current circuit breaker state.
func (p *HTTPPredictor) BreakerState() gobreaker.State {
	return p.breaker.State()
}

func cacheKey(features []float64) string {
	var b strings.Builder
	for i, f := range features {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "%g", f)
	}
	return b.String()
}
