// Package bootstrap wires configuration into the stores, gateway and
// metrics every command shares.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtnitsch/ragebait-block/internal/config"
	"github.com/dtnitsch/ragebait-block/pkg/classifier"
	"github.com/dtnitsch/ragebait-block/pkg/db"
	"github.com/dtnitsch/ragebait-block/pkg/kv"
	"github.com/dtnitsch/ragebait-block/pkg/message"
	"github.com/dtnitsch/ragebait-block/pkg/metrics"
	"github.com/dtnitsch/ragebait-block/pkg/permission"
	"github.com/dtnitsch/ragebait-block/pkg/scanner"
	"github.com/dtnitsch/ragebait-block/pkg/settings"
)

type Runtime struct {
	Config      *config.Config
	Logger      *slog.Logger
	Store       kv.Store
	Settings    *settings.Store
	Permissions *permission.Manager
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	// Gateway is nil when classification goes to a remote coordinator.
	Gateway    *classifier.Gateway
	Classifier scanner.Classifier

	closers []func() error
}

// Open builds a Runtime. Close releases the store.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	store, closeStore, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Settings:    settings.NewStore(store, logger),
		Permissions: permission.NewManager(store),
		Registry:    metrics.NewRegistry(),
		closers:     []func() error{closeStore},
	}
	rt.Metrics = metrics.New(rt.Registry)

	if cfg.Engine.Coordinator != "" {
		rt.Classifier = message.NewClient(cfg.Engine.Coordinator, &http.Client{Timeout: cfg.Engine.Timeout})
		logger.Debug("using remote coordinator", "url", cfg.Engine.Coordinator)
		return rt, nil
	}

	var langs *classifier.LanguageGate
	if len(cfg.Languages) > 0 {
		langs, err = classifier.NewLanguageGate(cfg.Languages)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("failed to build language gate: %w", err)
		}
	}

	engine := classifier.NewHTTPEngine(classifier.HTTPEngineConfig{
		Endpoint:        cfg.Engine.Endpoint,
		Timeout:         cfg.Engine.Timeout,
		RatePerSecond:   cfg.Engine.RatePerSecond,
		BreakerFailures: cfg.Engine.BreakerFailures,
		Logger:          logger,
	})
	rt.Gateway = classifier.NewGateway(classifier.Config{
		Engine:      engine,
		Permissions: rt.Permissions,
		Languages:   langs,
		Metrics:     rt.Metrics,
		Logger:      logger,
	})
	rt.Classifier = rt.Gateway
	return rt, nil
}

// OpenStore connects the configured key-value backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (kv.Store, func() error, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return kv.NewMemory(), func() error { return nil }, nil
	case config.DriverMongo:
		m, err := kv.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	case config.DriverRedis:
		r, err := kv.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case config.DriverSQLite, "":
		database, err := db.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return database, database.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func (r *Runtime) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}
