package config

import (
	"log/slog"
	"sync/atomic"

	"conduit/internal/cors"
	"conduit/internal/logger"
	"conduit/internal/metrics"
)

// Store owns the current configuration snapshot. Readers always see a
// complete snapshot; Reload replaces it with a single pointer swap.
type Store struct {
	basePath  string
	overrides Overrides
	current   atomic.Pointer[Config]
}

// NewStore loads the configuration and returns a Store holding it.
func NewStore(basePath string, overrides Overrides) (*Store, error) {
	cfg, err := Load(basePath, overrides)
	if err != nil {
		return nil, err
	}
	s := &Store{basePath: basePath, overrides: overrides}
	s.current.Store(cfg)
	return s, nil
}

// NewStaticStore wraps an already resolved snapshot. Reload on a static
// store re-reads nothing and keeps cfg.
func NewStaticStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Reload loads the configuration again and swaps it in. On error the
// previous snapshot stays active.
func (s *Store) Reload() (*Config, error) {
	if s.basePath == "" {
		return s.Current(), nil
	}

	cfg, err := Load(s.basePath, s.overrides)
	if err != nil {
		metrics.ConfigReloadsTotal.WithLabelValues("failure").Inc()
		logger.Error("Config reload failed, keeping previous configuration",
			slog.String("error", err.Error()))
		return nil, err
	}

	prev := s.current.Swap(cfg)
	metrics.ConfigReloadsTotal.WithLabelValues("success").Inc()
	warnRestartOnlyChanges(prev, cfg)
	logger.Info("Config reloaded", slog.Any("sources", cfg.Sources))
	return cfg, nil
}

// Capability resolves a capability against the active snapshot.
func (s *Store) Capability(resource, name string) bool {
	return s.Current().Capability(resource, name)
}

// CORSPolicy resolves a listener's CORS policy against the active snapshot.
func (s *Store) CORSPolicy(listener string) (cors.Policy, error) {
	return s.Current().CORSPolicy(listener)
}

// warnRestartOnlyChanges logs settings that a reload cannot apply to
// listeners that are already bound.
func warnRestartOnlyChanges(prev, next *Config) {
	if prev == nil {
		return
	}
	if prev.DatabaseURL != next.DatabaseURL {
		logger.Warn("db.url changed; restart required to reconnect")
	}
	for name, old := range prev.Listeners {
		l, ok := next.Listeners[name]
		if !ok {
			logger.Warn("Listener removed; restart required", slog.String("listener", name))
			continue
		}
		if l.Address != old.Address || l.Workers != old.Workers || l.Backlog != old.Backlog {
			logger.Warn("Listener socket settings changed; restart required",
				slog.String("listener", name))
		}
	}
	for name := range next.Listeners {
		if _, ok := prev.Listeners[name]; !ok {
			logger.Warn("Listener added; restart required", slog.String("listener", name))
		}
	}
}
