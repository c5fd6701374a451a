// Package app wires the gateway's components together and supervises their
// lifecycle: the WebSocket acceptor and the admin HTTP surface run under one
// errgroup so a fatal error in either tears the rest down, and the upstream
// bus connection is closed as part of that shutdown.
package app

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/natsgw/internal/config"
	"github.com/alanyoungcy/natsgw/internal/wsgw"
	"golang.org/x/sync/errgroup"
)

// App is the root application object.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   *dependencies
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger.With(slog.String("component", "app"))}
}

// Run wires all dependencies and blocks until ctx is cancelled (clean
// shutdown) or a component fails fatally.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting gateway",
		slog.String("nats_driver", a.cfg.NATS.Driver),
		slog.String("ws_addr", a.cfg.WS.Host),
		slog.Int("ws_port", a.cfg.WS.Port),
	)

	deps, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.deps = deps

	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		return deps.wsServer.Serve()
	})

	if deps.adminSrv != nil {
		grp.Go(func() error {
			return deps.adminSrv.Start()
		})
	}

	grp.Go(func() error {
		<-gctx.Done()
		a.shutdown()
		return nil
	})

	err = grp.Wait()
	// The shutdown watcher has already torn everything down.
	a.deps = nil
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// shutdown performs the graceful-shutdown sequence: close the WebSocket
// acceptor and admin server, stop every active upstream subscription, then
// close the bus connection.
func (a *App) shutdown() {
	a.logger.Info("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.deps.adminSrv != nil {
		_ = a.deps.adminSrv.Shutdown(shutdownCtx)
	}
	_ = a.deps.wsServer.Shutdown(shutdownCtx)

	a.deps.manager.StopAll(shutdownCtx)

	if err := a.deps.upstream.Close(); err != nil {
		a.logger.Warn("upstream close failed", slog.String("error", err.Error()))
	}
}

// Close releases any resources Run did not already tear down. Safe to call
// multiple times.
func (a *App) Close() {
	if a.deps == nil {
		return
	}
	a.shutdown()
	a.deps = nil
}

// wsListenerServer serves the WebSocket upgrade route on its own
// pre-bound listener, independent of the admin HTTP surface.
type wsListenerServer struct {
	listener net.Listener
	httpSrv  *http.Server
	logger   *slog.Logger
}

func newWSListenerServer(listener net.Listener, gw *wsgw.Gateway, logger *slog.Logger) *wsListenerServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWS)
	mux.HandleFunc("/", gw.HandleWS)
	return &wsListenerServer{
		listener: listener,
		httpSrv:  &http.Server{Handler: mux},
		logger:   logger.With(slog.String("component", "wsgw.listener")),
	}
}

func (s *wsListenerServer) Serve() error {
	s.logger.Info("websocket listener starting", slog.String("addr", s.listener.Addr().String()))
	if err := s.httpSrv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *wsListenerServer) Shutdown(ctx context.Context) error {
	s.logger.Info("websocket listener shutting down")
	return s.httpSrv.Shutdown(ctx)
}
