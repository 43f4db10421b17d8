package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hi-noikiy/redtrader/internal/repository"
	"github.com/hi-noikiy/redtrader/internal/usecase"
	"github.com/hi-noikiy/redtrader/pkg/config"
	xhttp "github.com/hi-noikiy/redtrader/pkg/http"
	applogger "github.com/hi-noikiy/redtrader/pkg/logger"
)

// App encapsulates the application lifecycle: the scheduled compile job and
// the ops endpoint, both running over one store.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	job        *usecase.CompileJob
	httpServer *xhttp.Server
	store      *repository.Store
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, job *usecase.CompileJob, srv *xhttp.Server, st *repository.Store) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, job: job, httpServer: srv, store: st}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext is Run bounded by ctx instead of process signals.
func (a *App) RunContext(ctx context.Context) error {
	if a.cfg.Server.Enabled && a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.l.Error("ops server start error", applogger.Error(err))
			return err
		}
	}

	if a.cfg.Compile.Enabled && a.job != nil {
		// Catch up once before the first scheduled tick.
		if _, err := a.job.RunOnce(ctx); err != nil {
			a.l.Warn("initial compile failed", applogger.Error(err))
		}
		a.job.Start()
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services. Resources owned by the injector
// are released by its cleanup function.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.job != nil {
		if err := a.job.Stop(ctx); err != nil {
			a.l.Warn("compile job stop error", applogger.Error(err))
		}
	}
	if a.httpServer != nil && a.cfg.Server.Enabled {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("ops shutdown error", applogger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Commit(); err != nil {
			a.l.Warn("store commit error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
