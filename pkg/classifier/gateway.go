package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/metrics"
	"github.com/dtnitsch/ragebait-block/pkg/permission"
)

// Permissions is the subset of the permission manager the gateway needs.
type Permissions interface {
	Contains(ctx context.Context, name string) (bool, error)
}

// Config for creating a Gateway.
type Config struct {
	Engine Engine
	// Permissions, when set, must hold permission.TrialML before the
	// engine is created.
	Permissions Permissions
	// Languages, when set, short-circuits text in other languages to an
	// empty verdict.
	Languages *LanguageGate
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Gateway is safe for concurrent use.
type Gateway struct {
	engine Engine
	perms  Permissions
	lang   *LanguageGate
	m      *metrics.Metrics
	logger *slog.Logger

	init  singleflight.Group
	mu    sync.Mutex
	ready bool

	// runMu serializes inference calls on the engine.
	runMu sync.Mutex
}

func NewGateway(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		engine: cfg.Engine,
		perms:  cfg.Permissions,
		lang:   cfg.Languages,
		m:      cfg.Metrics,
		logger: cfg.Logger,
	}
}

// Ready reports whether the engine has been created.
func (g *Gateway) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// Classify sends text to the engine. It never fails: errors, including
// engine panics, come back as Verdict.Error and are logged.
func (g *Gateway) Classify(ctx context.Context, text string) (v models.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("engine panicked", "panic", r)
			g.m.ObserveVerdict(metrics.OutcomeError)
			v = models.Verdict{Error: fmt.Sprintf("engine panic: %v", r)}
		}
	}()

	if g.lang != nil && !g.lang.Accept(text) {
		g.m.ObserveVerdict(metrics.OutcomeSkipped)
		return models.Verdict{Labels: []models.LabelScore{}}
	}

	if err := g.ensureEngine(ctx); err != nil {
		g.logger.Error("ML engine error", "stage", "create", "error", err)
		g.m.ObserveVerdict(metrics.OutcomeError)
		return models.Verdict{Error: err.Error()}
	}

	labels, err := g.run(ctx, text)
	if err != nil {
		g.logger.Error("ML engine error", "stage", "run", "error", err)
		g.m.ObserveVerdict(metrics.OutcomeError)
		return models.Verdict{Error: err.Error()}
	}
	if labels == nil {
		labels = []models.LabelScore{}
	}
	return models.Verdict{Labels: labels}
}

func (g *Gateway) run(ctx context.Context, text string) ([]models.LabelScore, error) {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	start := time.Now()
	labels, err := g.engine.Run(ctx, RunRequest{
		Args:    []string{text},
		Options: RunOptions{TopK: nil},
	})
	g.m.ObserveInference(time.Since(start))
	return labels, err
}

// ensureEngine creates the engine at most once. Concurrent first callers
// share one creation call; a failed creation leaves the gateway
// uninitialized so the next request tries again.
func (g *Gateway) ensureEngine(ctx context.Context) error {
	if g.Ready() {
		return nil
	}

	_, err, _ := g.init.Do("engine", func() (interface{}, error) {
		if g.Ready() {
			return nil, nil
		}

		// Shared by every waiter, so one caller's cancellation must not
		// abort the others.
		initCtx := context.WithoutCancel(ctx)

		if g.perms != nil {
			ok, err := g.perms.Contains(initCtx, permission.TrialML)
			if err != nil {
				return nil, fmt.Errorf("failed to check %s permission: %w", permission.TrialML, err)
			}
			if !ok {
				return nil, fmt.Errorf("%s: %w", permission.TrialML, permission.ErrDenied)
			}
		}

		cfg := DefaultEngineConfig()
		err := g.engine.Create(initCtx, cfg)
		g.m.ObserveEngineInit(err)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine: %w", err)
		}

		g.mu.Lock()
		g.ready = true
		g.mu.Unlock()

		g.logger.Info("ML engine created", "model", cfg.ModelID, "task", cfg.TaskName)
		return nil, nil
	})
	return err
}
