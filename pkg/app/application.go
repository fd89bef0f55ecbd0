package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"

	"staybook/pkg/config"
	"staybook/pkg/contracts"
	"staybook/pkg/middleware"
)

type namedWorker struct {
	name   string
	worker contracts.Worker
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore *middleware.IdempotencyStore
	rateLimiter      *middleware.RateLimiter
	healthHandler    http.Handler
	appHttpHandler   http.Handler
	workers          []namedWorker
	closers          []func()
}

func NewApplication() *Application {
	return &Application{}
}

func (a *Application) SetApp(cfg *config.Config, appHandler contracts.Handler) {
	a.cfg = cfg
	a.setHealthHandler(cfg)
	a.setAppHandler(cfg, appHandler)
	a.setAppServer()
}

// AddWorker registers a background loop started alongside the HTTP server
// and cancelled on shutdown.
func (a *Application) AddWorker(name string, w contracts.Worker) {
	a.workers = append(a.workers, namedWorker{name: name, worker: w})
}

// OnShutdown registers fn to run after the server and workers stopped.
func (a *Application) OnShutdown(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setHealthHandler(cfg *config.Config) {
	healthRouter := httprouter.New()
	healthHandler := NewHealthHandler(cfg.Client.Mongo, cfg.StorageDriver, cfg.Log)
	healthHandler.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(cfg *config.Config, appHandler contracts.Handler) {
	appRouter := httprouter.New()
	appHandler.RegisterRoutes(appRouter)

	a.idempotencyStore = middleware.NewIdempotencyStore(cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewRateLimiter(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		middleware.UserIDExtractor,
		cfg.Log,
	)

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore)(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(cfg.RequestTimeout)(appHttpHandler)
	appHttpHandler = middleware.RateLimit(a.rateLimiter)(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(cfg.MaxRequestSize))(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

// Run serves HTTP and runs the background workers until a signal arrives
// or one of them fails, then shuts everything down.
func (a *Application) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.serve(ctx); err != nil {
		a.cfg.Log.Error("Application stopped with error", "error", err)
		a.gracefulShutdown()
		os.Exit(1)
	}
	a.gracefulShutdown()
}

func (a *Application) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	for _, nw := range a.workers {
		g.Go(func() error {
			a.cfg.Log.Info("Starting background worker", "worker", nw.name)
			if err := nw.worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				a.cfg.Log.Error("Background worker failed", "worker", nw.name, "error", err)
				return err
			}
			a.cfg.Log.Info("Background worker stopped", "worker", nw.name)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.cfg.Log.Info("Shutdown signal received")
		return a.shutdownServer()
	})

	return g.Wait()
}

func (a *Application) shutdownServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		return a.server.Close()
	}
	a.cfg.Log.Info("Server stopped gracefully")
	return nil
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.cfg.GracefulShutdown()

	a.cfg.Log.Info("Shutdown complete")
}
