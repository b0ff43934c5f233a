// Package server runs one HTTP listener per configured server entry, each
// with its own worker limit, connection backlog and CORS policy.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"conduit/internal/config"
	"conduit/internal/handler"
	"conduit/internal/logger"
	"conduit/internal/middleware"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second
	idleTimeout            = 120 * time.Second
)

// Mounts registers business routes per service name. A listener mounts only
// the services it lists.
type Mounts map[string]func(api *gin.RouterGroup)

// Options tune the runtime.
type Options struct {
	Version         string
	ShutdownTimeout time.Duration
}

// Server owns the HTTP listeners of one process.
type Server struct {
	store     *config.Store
	opts      Options
	listeners []*listener
}

type listener struct {
	cfg    config.Listener
	engine *gin.Engine
	http   *http.Server
	ln     net.Listener
}

// New builds a router for every listener in the store's current
// configuration. Listeners are not bound until Listen.
func New(store *config.Store, db handler.Database, mounts Mounts, opts Options) (*Server, error) {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg := store.Current()
	s := &Server{store: store, opts: opts}
	health := handler.NewHealthHandler(db, opts.Version)

	for _, name := range cfg.Servers {
		lc, ok := cfg.Listener(name)
		if !ok {
			return nil, fmt.Errorf("build listener %q: %w", name, config.ErrInvalidConfig)
		}
		engine := s.router(lc, health, mounts)
		s.listeners = append(s.listeners, &listener{
			cfg:    lc,
			engine: engine,
			http: &http.Server{
				Addr:              lc.Address,
				Handler:           engine,
				ReadHeaderTimeout: readHeaderTimeout,
				IdleTimeout:       idleTimeout,
			},
		})
	}
	return s, nil
}

func (s *Server) router(lc config.Listener, health *handler.HealthHandler, mounts Mounts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics(lc.Name))
	router.Use(middleware.AccessLog(lc.Name))
	router.Use(middleware.Snapshot(s.store))
	router.Use(middleware.CORS(lc.Name, s.store))
	router.Use(middleware.Workers(lc.Name, lc.Workers))

	// Health and metrics endpoints
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	router.GET("/live", health.Live)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/capabilities", handler.NewCapabilityHandler(lc.Name, s.store).List)

	for _, svc := range lc.Services {
		mount, ok := mounts[svc]
		if !ok {
			logger.Debug("No routes registered for service",
				slog.String("listener", lc.Name),
				slog.String("service", svc))
			continue
		}
		mount(api)
	}
	return router
}

// Handler returns the router of the named listener.
func (s *Server) Handler(name string) (http.Handler, bool) {
	for _, l := range s.listeners {
		if l.cfg.Name == name {
			return l.engine, true
		}
	}
	return nil, false
}

// Listen binds every listener. Accepted connections per listener are capped
// at its backlog. On error, listeners bound so far are closed.
func (s *Server) Listen() error {
	for _, l := range s.listeners {
		ln, err := net.Listen("tcp", l.cfg.Address)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("listen %s on %s: %w", l.cfg.Name, l.cfg.Address, err)
		}
		l.ln = netutil.LimitListener(ln, l.cfg.Backlog)
		logger.WithListener(l.cfg.Name).Info("Listening",
			slog.String("address", ln.Addr().String()),
			slog.Int("workers", l.cfg.Workers),
			slog.Int("backlog", l.cfg.Backlog),
			slog.Any("services", l.cfg.Services))
	}
	return nil
}

// Addr returns the bound address of the named listener.
func (s *Server) Addr(name string) (net.Addr, bool) {
	for _, l := range s.listeners {
		if l.cfg.Name == name && l.ln != nil {
			return l.ln.Addr(), true
		}
	}
	return nil, false
}

// Serve runs every bound listener until ctx is done, then shuts them down
// gracefully. A listener failing stops the others.
func (s *Server) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, l := range s.listeners {
		l := l
		if l.ln == nil {
			return fmt.Errorf("serve %s: listener not bound", l.cfg.Name)
		}
		g.Go(func() error {
			if err := l.http.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", l.cfg.Name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down listeners")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, l := range s.listeners {
			if err := l.http.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", l.cfg.Name, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// Run binds and serves every listener until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) closeListeners() {
	for _, l := range s.listeners {
		if l.ln != nil {
			_ = l.ln.Close()
			l.ln = nil
		}
	}
}
