package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/leandrodaf/midibridge/internal/bridge"
	"github.com/leandrodaf/midibridge/internal/config"
	"github.com/leandrodaf/midibridge/internal/metrics"
	"github.com/leandrodaf/midibridge/internal/transport/wsserver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// app owns the long-lived pieces of one bridge process.
type app struct {
	cfg    *config.Config
	logger contracts.Logger
	server *wsserver.Server
	bridge *bridge.Bridge
	http   *http.Server
}

func newApp(cfg *config.Config, log contracts.Logger, driver contracts.Driver, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*app, error) {
	m := metrics.New(reg)
	server := wsserver.New(nil,
		wsserver.WithLogger(log),
		wsserver.WithSendBuffer(cfg.Server.SendBuffer),
	)

	b, err := bridge.New(driver, server, cfg.Bridge(),
		bridge.WithLogger(log),
		bridge.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	server.SetListener(b)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, server)
	if cfg.Server.MetricsPath != "" {
		mux.Handle(cfg.Server.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return &app{
		cfg:    cfg,
		logger: log,
		server: server,
		bridge: b,
		http: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// run serves on ln until ctx is done or a component fails, then shuts down
// in order: stop accepting, disconnect clients (releasing their notes),
// release anything left, stop the event loop.
func (a *app) run(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(context.Background())

	g.Go(func() error {
		return a.bridge.Run(loopCtx)
	})
	g.Go(func() error {
		a.logger.Info("WebSocket server listening",
			a.logger.Field().String("addr", ln.Addr().String()),
			a.logger.Field().String("path", a.cfg.Server.Path))
		if err := a.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := multierr.Combine(
			a.http.Shutdown(shutdownCtx),
			a.server.Close(),
			a.bridge.Close(),
		)
		stopLoop()
		return err
	})

	return g.Wait()
}
