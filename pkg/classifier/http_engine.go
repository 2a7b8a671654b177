package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dtnitsch/ragebait-block/models"
)

// HTTPEngineConfig configures an engine reached over HTTP.
type HTTPEngineConfig struct {
	// Endpoint is the base URL; the engine exposes POST /engines and POST /run.
	Endpoint string
	Timeout  time.Duration
	// RatePerSecond caps outgoing calls. Zero disables limiting.
	RatePerSecond float64
	// BreakerFailures is the number of consecutive failures that opens the
	// circuit. Zero uses 5.
	BreakerFailures uint32
	// BreakerCooldown is how long the circuit stays open. Zero uses 30s.
	BreakerCooldown time.Duration
	Client          *http.Client
	Logger          *slog.Logger
}

// HTTPEngine talks to a model server speaking the engine JSON contract.
// Calls fail fast while the circuit is open; nothing is retried.
type HTTPEngine struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

func NewHTTPEngine(cfg HTTPEngineConfig) *HTTPEngine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	logger := cfg.Logger
	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "engine",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"component", name, "from", from.String(), "to", to.String())
		},
	})

	return &HTTPEngine{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   client,
		limiter:  limiter,
		breaker:  breaker,
		logger:   logger,
	}
}

// Create asks the server to load the model.
func (e *HTTPEngine) Create(ctx context.Context, cfg EngineConfig) error {
	return e.post(ctx, "/engines", cfg, nil)
}

// Run classifies req.Args[0]. Servers may answer with a flat list of labels
// or a list per input; both are accepted.
func (e *HTTPEngine) Run(ctx context.Context, req RunRequest) ([]models.LabelScore, error) {
	var raw json.RawMessage
	if err := e.post(ctx, "/run", req, &raw); err != nil {
		return nil, err
	}
	return decodeLabels(raw)
}

func decodeLabels(raw json.RawMessage) ([]models.LabelScore, error) {
	var flat []models.LabelScore
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var nested [][]models.LabelScore
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("failed to decode engine labels: %w", err)
	}
	if len(nested) == 0 {
		return []models.LabelScore{}, nil
	}
	return nested[0], nil
}

func (e *HTTPEngine) post(ctx context.Context, path string, in, out interface{}) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	_, err = e.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to call engine: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read engine response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, engineError(resp.StatusCode, data)
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return nil, fmt.Errorf("failed to decode engine response: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

func engineError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("engine returned %d: %s", status, e.Error)
	}
	return fmt.Errorf("engine returned status %d", status)
}
