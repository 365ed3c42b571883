// Package app encapsulates server assembly and lifecycle: store, fan-out
// hub, outbox pipeline, HTTP server, and ordered shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"parley/pkg/config"
	"parley/pkg/fanout"
	"parley/pkg/logger"
	"parley/pkg/outbox"
	"parley/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	hub   *fanout.Hub
	queue *outbox.Queue

	srv    *http.Server
	cancel context.CancelFunc
}

// New initializes resources that do not require a running context: the
// store, the fan-out hub, and the outbox queue. Call Run to start the
// HTTP server and background workers and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	hub := fanout.NewHub(eff.Config.Fanout.BufferSize)
	fanout.SetDefaultHub(hub)

	queue := outbox.NewQueue(eff.Config.Outbox.Capacity)
	outbox.SetDefaultQueue(queue)
	if !eff.Config.Outbox.Disabled {
		hub.SetDurableSink(queue.Sink)
	}

	return &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		hub:       hub,
		queue:     queue,
	}, nil
}

// Run starts background workers and the HTTP server, and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	ctx2, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	defer cancel()

	if !a.eff.Config.Outbox.Disabled {
		go a.queue.RunWorker(ctx2)
		stopSweep, err := outbox.StartSweeper(ctx2, outbox.SweepConfig{
			Enabled: true,
			Cron:    a.eff.Config.Outbox.SweepCron,
			TTL:     a.eff.Config.Outbox.TTL.Duration(),
		})
		if err != nil {
			return err
		}
		defer stopSweep()
	}

	a.printBanner()

	errCh := a.startHTTP(ctx2)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		return err
	}
}

// shutdown stops the HTTP server and closes the store.
func (a *App) shutdown() {
	if a.srv != nil {
		sctx, done := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer done()
		_ = a.srv.Shutdown(sctx)
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("server_stopped")
}
