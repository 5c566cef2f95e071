package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TaskStream/pkg/config"
	xhttp "TaskStream/pkg/http"
	applogger "TaskStream/pkg/logger"
)

// Closer is a named resource released on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	closers    []Closer
}

// New creates an App. closers run in order after the HTTP server has stopped.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, closers ...Closer) *App {
	return &App{cfg: cfg, log: l, httpServer: srv, closers: closers}
}

// Run starts the HTTP server and blocks until interrupted or the listener fails.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	errCh := a.httpServer.Start()
	a.log.Info("taskstream started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("clickhouse_db", a.cfg.ClickHouse.Database),
		applogger.Strings("kafka_brokers", a.cfg.Kafka.Brokers),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			a.log.Error("http server error", applogger.Error(err))
			runErr = err
		}
	}
	if err := a.shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	// Flush the log digest before the producer behind it goes away.
	a.log.RemoveCollector()

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn(c.Name+" close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return firstErr
}
