package serve

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/ragebait-block/internal/bootstrap"
)

// ServeAction runs the coordinator until SIGINT or SIGTERM.
func ServeAction(c *cli.Context) error {
	cfg, logger, err := bootstrap.Configure(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.Settings.Install(ctx); err != nil {
		return err
	}

	deps := Deps{
		Settings:    rt.Settings,
		Permissions: rt.Permissions,
		Classifier:  rt.Classifier,
		Registry:    rt.Registry,
		Metrics:     rt.Metrics,
		Workers:     cfg.Scanner.Workers,
		Logger:      logger,
	}
	if rt.Gateway != nil {
		deps.Ready = rt.Gateway.Ready
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           New(deps).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
