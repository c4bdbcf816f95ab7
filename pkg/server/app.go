package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"SessionLens/internal/usecase"
	"SessionLens/pkg/config"
	xhttp "SessionLens/pkg/http"
	applogger "SessionLens/pkg/logger"
	"SessionLens/pkg/queue"
)

// App owns the long-running parts of the process: the HTTP API and the run
// queue workers. Infrastructure clients are released by the DI cleanup.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	pipeline   *usecase.Pipeline
	httpServer *xhttp.Server
	queue      *queue.RedisQueue
}

func New(cfg *config.Config, l *applogger.Logger, pipeline *usecase.Pipeline, httpServer *xhttp.Server, q *queue.RedisQueue) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, pipeline: pipeline, httpServer: httpServer, queue: q}
}

func (a *App) Pipeline() *usecase.Pipeline { return a.pipeline }

// RunOnce analyses one input file and writes the result bundle as JSON to w.
func (a *App) RunOnce(ctx context.Context, path string, persist bool, w io.Writer) error {
	res, err := a.pipeline.Run(ctx, usecase.RunParams{Path: path, Persist: persist})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// Serve starts the queue workers and the HTTP API and blocks until ctx is
// cancelled, then drains both.
func (a *App) Serve(ctx context.Context) error {
	if a.httpServer == nil {
		return errors.New("http server disabled")
	}
	if a.queue != nil {
		if err := a.queue.Start(ctx); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
	}
	a.httpServer.Start()
	a.l.Info("sessionlens serving",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Bool("snapshots", a.cfg.Snapshot.Enabled),
		applogger.Bool("redis", a.cfg.Redis.Enabled),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
		applogger.Bool("queue", a.queue != nil),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("queue stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
