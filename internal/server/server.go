// Package server wires the lobby: registry, protocol engine and the three
// listeners for discovery, commands and broadcasts.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	router "github.com/dkeye/lobby/internal/adapters/http"
	"github.com/dkeye/lobby/internal/adapters/pubsub"
	"github.com/dkeye/lobby/internal/adapters/signal"
	"github.com/dkeye/lobby/internal/app"
	"github.com/dkeye/lobby/internal/app/orch"
	"github.com/dkeye/lobby/internal/config"
	"github.com/dkeye/lobby/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrNotListening = errors.New("server is not listening")

type Server struct {
	cfg *config.ServerConfig

	Registry     *app.Registry
	Orchestrator *orch.Orchestrator
	Commands     *signal.Controller
	Broadcasts   *pubsub.Hub

	gatherer prometheus.Gatherer

	discoveryLn net.Listener
	frontendLn  net.Listener
	backendLn   net.Listener
}

func New(cfg *config.ServerConfig) (*Server, error) {
	action, err := app.ParseBackpressureAction(cfg.Backpressure)
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(promReg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	ctl := signal.NewController(signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	}, signal.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst), m)

	hub := pubsub.NewHub(pubsub.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	}, app.SimplePolicy{Action: action}, m)

	reg := app.NewRegistry()
	o := orch.New(reg, ctl, hub, m)
	ctl.Bind(o)

	return &Server{
		cfg:          cfg,
		Registry:     reg,
		Orchestrator: o,
		Commands:     ctl,
		Broadcasts:   hub,
		gatherer:     promReg,
	}, nil
}

// Listen binds all three listeners and publishes the command and broadcast
// ports through discovery.
func (s *Server) Listen() error {
	var err error
	if s.frontendLn, err = net.Listen("tcp", s.cfg.FrontendAddr); err != nil {
		return fmt.Errorf("listen frontend: %w", err)
	}
	if s.backendLn, err = net.Listen("tcp", s.cfg.BackendAddr); err != nil {
		s.closeListeners()
		return fmt.Errorf("listen backend: %w", err)
	}
	if s.discoveryLn, err = net.Listen("tcp", s.cfg.DiscoveryAddr); err != nil {
		s.closeListeners()
		return fmt.Errorf("listen discovery: %w", err)
	}
	frontend := s.frontendLn.Addr().(*net.TCPAddr).Port
	backend := s.backendLn.Addr().(*net.TCPAddr).Port
	s.Orchestrator.SetEndpoints(frontend, backend)

	log.Info().Str("module", "server").
		Str("discovery", s.discoveryLn.Addr().String()).
		Int("frontend", frontend).
		Int("backend", backend).
		Msg("listeners bound")
	return nil
}

// DiscoveryAddr is the bound discovery address, empty before Listen.
func (s *Server) DiscoveryAddr() string {
	if s.discoveryLn == nil {
		return ""
	}
	return s.discoveryLn.Addr().String()
}

// Serve blocks until ctx is cancelled or a listener fails, then shuts every
// listener down and closes live websocket connections.
func (s *Server) Serve(ctx context.Context) error {
	if s.discoveryLn == nil || s.frontendLn == nil || s.backendLn == nil {
		return ErrNotListening
	}
	g, gctx := errgroup.WithContext(ctx)

	type binding struct {
		name string
		srv  *http.Server
		ln   net.Listener
	}
	bindings := []binding{
		{"discovery", &http.Server{Handler: router.SetupDiscoveryRouter(s.cfg, s.Orchestrator, s.gatherer)}, s.discoveryLn},
		{"frontend", &http.Server{Handler: router.SetupCommandRouter(gctx, s.cfg, s.Commands)}, s.frontendLn},
		{"backend", &http.Server{Handler: router.SetupBroadcastRouter(gctx, s.cfg, s.Broadcasts)}, s.backendLn},
	}

	for _, b := range bindings {
		g.Go(func() error {
			log.Info().Str("module", "server").Str("listener", b.name).Str("addr", b.ln.Addr().String()).Msg("serving")
			if err := b.srv.Serve(b.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s: %w", b.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "server").Msg("shutting down")
		s.Commands.Close()
		s.Broadcasts.Close()

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		for _, b := range bindings {
			if err := b.srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Str("module", "server").Str("listener", b.name).Msg("forced shutdown")
			}
		}
		return nil
	})

	err := g.Wait()
	log.Info().Str("module", "server").Msg("server exited")
	return err
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) closeListeners() {
	for _, ln := range []net.Listener{s.discoveryLn, s.frontendLn, s.backendLn} {
		if ln != nil {
			_ = ln.Close()
		}
	}
}
