package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/alanyoungcy/natsgw/internal/bus"
	"github.com/alanyoungcy/natsgw/internal/bus/natsbus"
	"github.com/alanyoungcy/natsgw/internal/bus/redisbus"
	"github.com/alanyoungcy/natsgw/internal/config"
	"github.com/alanyoungcy/natsgw/internal/heartbeat"
	"github.com/alanyoungcy/natsgw/internal/registry"
	"github.com/alanyoungcy/natsgw/internal/server"
	"github.com/alanyoungcy/natsgw/internal/server/handler"
	"github.com/alanyoungcy/natsgw/internal/wsgw"
)

// upstreamCloser is the narrow shutdown capability both bus backends expose.
type upstreamCloser interface {
	Close() error
}

// natsCloser adapts natsbus.Upstream's Close() (no error return) to
// upstreamCloser.
type natsCloser struct{ u *natsbus.Upstream }

func (c natsCloser) Close() error {
	c.u.Close()
	return nil
}

// dependencies holds every long-lived component Run needs to supervise.
type dependencies struct {
	registry   *registry.Registry
	manager    *bus.Manager
	heartbeat  *heartbeat.Controller
	gateway    *wsgw.Gateway
	upstream   upstreamCloser
	wsListener net.Listener
	wsServer   *wsListenerServer
	adminSrv   *server.Server
}

// Wire connects the upstream bus, the control-plane components, the
// WebSocket gateway, and the admin HTTP surface. It connects the bus and
// pre-binds the WebSocket listening port, so a bad bus URL or an
// already-bound WebSocket port surfaces synchronously and the process exits
// non-zero before it ever accepts a connection. The admin server's port is
// not pre-bound: it is bound when the server starts serving, and a failure
// there ends Run with an error.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	reg := registry.New()

	var dispatcher *wsgw.Dispatcher
	handleBusMessage := func(subject string, payload []byte) {
		dispatcher.HandleBusMessage(subject, payload)
	}

	upstream, closer, err := connectUpstream(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: connect upstream bus: %w", err)
	}

	mgr := bus.NewManager(upstream, handleBusMessage, logger)
	hbCtl := heartbeat.New(mgr, logger)
	gw := wsgw.NewGateway(reg, mgr, hbCtl, cfg.Heartbeat.EventName, logger)
	dispatcher = wsgw.NewDispatcher(gw, reg, logger)

	wsAddr := fmt.Sprintf("%s:%d", cfg.WS.Host, cfg.WS.Port)
	wsListener, err := net.Listen("tcp", wsAddr)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("app: bind websocket listener %s: %w", wsAddr, err)
	}
	wsSrv := newWSListenerServer(wsListener, gw, logger)

	var adminSrv *server.Server
	if cfg.Server.Enabled {
		healthHandler := handler.NewHealthHandler(logger)
		statusHandler := handler.NewStatusHandler(reg, mgr, hbCtl)
		adminSrv = server.NewServer(
			server.Config{Port: cfg.Server.Port},
			server.Handlers{Health: healthHandler, Status: statusHandler},
			logger,
		)
	}

	return &dependencies{
		registry:   reg,
		manager:    mgr,
		heartbeat:  hbCtl,
		gateway:    gw,
		upstream:   closer,
		wsListener: wsListener,
		wsServer:   wsSrv,
		adminSrv:   adminSrv,
	}, nil
}

func connectUpstream(cfg *config.Config) (bus.Upstream, upstreamCloser, error) {
	switch cfg.NATS.Driver {
	case "redis":
		u, err := redisbus.Connect(context.Background(), redisbus.Config{
			Addr:       cfg.NATS.RedisAddr,
			Password:   cfg.NATS.RedisPassword,
			DB:         cfg.NATS.RedisDB,
			PoolSize:   cfg.NATS.RedisPoolSize,
			MaxRetries: cfg.NATS.RedisMaxRetries,
		})
		if err != nil {
			return nil, nil, err
		}
		return u, u, nil
	default:
		u, err := natsbus.Connect(natsbus.Config{URL: cfg.NATS.URL, ClientName: cfg.NATS.ClientName})
		if err != nil {
			return nil, nil, err
		}
		return u, natsCloser{u}, nil
	}
}
