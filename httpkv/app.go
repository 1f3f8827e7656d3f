// Package httpkv is the small HTTP transport the store is fronted with: a
// request router with path-parameter matching and a response-building
// context, plus an App that wires the router into a gracefully
// shutdown-able http.Server and mounts the store's readiness probe.
package httpkv

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"
)

// preShutdownDelay and shutdownTimeout bound the drain window between a
// SIGINT/SIGTERM and the server closing: long enough for a load balancer
// to stop sending new connections to a keyspace read/write in flight,
// short enough not to stall a restart.
const (
	preShutdownDelay = 1 * time.Second
	shutdownTimeout  = 15 * time.Second
)

// App owns the HTTP server lifecycle and embeds Router. It mounts
// /healthz on construction so every deployment of the store gets a
// readiness probe without the dispatcher having to know about it.
type App struct {
	*Router

	shuttingDown atomic.Bool // flips healthzHandler to 503
}

// New creates an App with /healthz already mounted; the dispatcher's own
// routes are registered afterward against a.Router. log, if nil,
// defaults to slog.Default().
func New(log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	r := NewRouter()
	r.SetLogger(log)

	a := &App{Router: r}
	r.Get("/healthz", a.healthzHandler)
	return a
}

// healthzHandler reports 200 while serving and 503 after shutdown begins.
func (a *App) healthzHandler(c *Ctx) error {
	if a.shuttingDown.Load() {
		return c.Text(http.StatusServiceUnavailable, "shutting down")
	}
	return c.Text(http.StatusOK, "ok")
}

// Listen starts an HTTP server at addr and handles SIGINT and SIGTERM,
// draining in-flight keyspace requests before the process exits.
func (a *App) Listen(addr string) error {
	srv := &http.Server{Addr: addr, Handler: a}
	parent, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.serveContext(parent, srv)
}

// serveContext runs the server until ctx is canceled, then performs a
// graceful drain.
func (a *App) serveContext(ctx context.Context, srv *http.Server) error {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }

	log := a.Logger().With(
		slog.String("addr", srv.Addr),
		slog.Int("pid", os.Getpid()),
		slog.String("go_version", runtime.Version()),
	)
	log.Info("server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server start failed", slog.Any("error", err))
		}
		return err

	case <-ctx.Done():
		start := time.Now()
		a.shuttingDown.Store(true)
		log.Info("shutdown initiated")

		time.Sleep(preShutdownDelay)

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(drainCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Grace period expired or other failure. Close and cancel base to nudge handlers.
			log.Warn("graceful shutdown incomplete", slog.Any("error", err))
			_ = srv.Close()
			cancelBase()
		} else {
			// Drain completed. Cancel base to release any background waiters tied to BaseContext.
			cancelBase()
		}

		if err := <-errCh; err != nil {
			log.Error("server exit error after shutdown", slog.Any("error", err))
			return err
		}

		log.Info("server stopped gracefully", slog.Duration("duration", time.Since(start)))
		return nil
	}
}
