// Package config loads the deployment configuration: a base document merged
// with a run-mode or explicit override file and with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"conduit/internal/capability"
	"conduit/internal/cors"
	"conduit/internal/logger"
)

// Environment variables consulted by Load.
const (
	EnvDatabaseURL    = "DATABASE_URL"
	EnvAppDatabaseURL = "APP_DB_URL"
	EnvDebug          = "APP_DEBUG"
	EnvRunMode        = "RUN_MODE"
)

const defaultRunMode = "development"

// Overrides selects the files merged on top of the base document.
type Overrides struct {
	// ConfigFile, when set, is merged instead of the run-mode file and must exist.
	ConfigFile string
	// RunMode names the optional conf/<mode>.<ext> overlay. Defaults to
	// $RUN_MODE, then "development".
	RunMode string
}

// Load reads basePath, merges overrides and environment variables and returns
// the resolved snapshot. Every returned error other than an I/O failure wraps
// ErrInvalidConfig.
func Load(basePath string, overrides Overrides) (*Config, error) {
	doc, err := readDocument(basePath)
	if err != nil {
		return nil, fmt.Errorf("load base config: %w", err)
	}
	sources := []string{basePath}

	overlay, required := overlayPath(basePath, overrides)
	if overlay != "" && filepath.Clean(overlay) != filepath.Clean(basePath) {
		extra, err := readDocument(overlay)
		switch {
		case err == nil:
			doc.merge(extra)
			sources = append(sources, overlay)
		case !required && errors.Is(err, fs.ErrNotExist):
			logger.Debug("No run-mode config file", slog.String("path", overlay))
		default:
			return nil, fmt.Errorf("load override config: %w", err)
		}
	}

	if err := applyEnv(doc); err != nil {
		return nil, err
	}

	cfg, err := build(doc)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources
	return cfg, nil
}

func overlayPath(basePath string, overrides Overrides) (string, bool) {
	if overrides.ConfigFile != "" {
		return overrides.ConfigFile, true
	}
	mode := overrides.RunMode
	if mode == "" {
		mode = strings.TrimSpace(os.Getenv(EnvRunMode))
	}
	if mode == "" {
		mode = defaultRunMode
	}
	return filepath.Join(filepath.Dir(basePath), mode+filepath.Ext(basePath)), false
}

// applyEnv overlays environment variables. The database URL from the
// environment always wins over the files.
func applyEnv(doc document) error {
	for _, key := range []string{EnvDatabaseURL, EnvAppDatabaseURL} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			doc.set("db.url", v)
			break
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvDebug)); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return invalid("%s must be a boolean, got %q", EnvDebug, v)
		}
		doc.set("debug", debug)
	}
	return nil
}

func build(doc document) (*Config, error) {
	cfg := &Config{Listeners: make(map[string]Listener)}

	debug, _, err := doc.boolean("debug")
	if err != nil {
		return nil, err
	}
	cfg.Debug = debug

	dbURL, _, err := doc.str("db.url")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dbURL) == "" {
		return nil, invalid("db.url is required: set it in the config file or in $%s", EnvDatabaseURL)
	}
	cfg.DatabaseURL = strings.TrimSpace(dbURL)

	servers, _, err := doc.strings("servers")
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, invalid("servers must list at least one listener")
	}

	policies := make(map[string]cors.Policy, len(servers))
	for _, name := range servers {
		if _, dup := cfg.Listeners[name]; dup {
			return nil, invalid("server %q is listed more than once", name)
		}
		l, err := buildListener(doc, name)
		if err != nil {
			return nil, err
		}
		cfg.Listeners[name] = l
		policies[name] = l.CORS
	}
	cfg.Servers = servers
	cfg.CORS = cors.NewResolver(policies)

	caps, err := buildCapabilities(doc)
	if err != nil {
		return nil, err
	}
	cfg.Capabilities = caps

	return cfg, nil
}

func buildListener(doc document, name string) (Listener, error) {
	if _, ok := doc.table(name); !ok {
		return Listener{}, invalid("server %q has no [%s] table", name, name)
	}
	prefix := name + "."
	l := Listener{Name: name, Workers: runtime.NumCPU(), Backlog: defaultBacklog}

	addr, _, err := doc.str(prefix + "listen")
	if err != nil {
		return Listener{}, err
	}
	l.Address = strings.TrimSpace(addr)

	if n, ok, err := doc.integer(prefix + "workers"); err != nil {
		return Listener{}, err
	} else if ok {
		l.Workers = n
	}

	if n, ok, err := doc.integer(prefix + "backlog"); err != nil {
		return Listener{}, err
	} else if ok {
		l.Backlog = n
	}

	services, _, err := doc.strings(prefix + "services")
	if err != nil {
		return Listener{}, err
	}
	seen := make(map[string]struct{}, len(services))
	for _, s := range services {
		if _, dup := seen[s]; dup {
			return Listener{}, invalid("server %q: service %q is listed more than once", name, s)
		}
		seen[s] = struct{}{}
	}
	l.Services = services

	if err := l.Validate(); err != nil {
		return Listener{}, invalid("server %q: %v", name, err)
	}

	policy, err := buildCORS(doc, prefix+"cors")
	if err != nil {
		return Listener{}, fmt.Errorf("%w: server %q: cors: %w", ErrInvalidConfig, name, err)
	}
	l.CORS = policy

	return l, nil
}

func buildCORS(doc document, prefix string) (cors.Policy, error) {
	if _, ok := doc.table(prefix); !ok {
		return cors.Policy{}, nil
	}

	var spec cors.Spec
	var err error
	if spec.Origins, _, err = doc.strings(prefix + ".origins"); err != nil {
		return cors.Policy{}, err
	}
	if spec.Methods, _, err = doc.strings(prefix + ".methods"); err != nil {
		return cors.Policy{}, err
	}
	if spec.Headers, _, err = doc.strings(prefix + ".headers"); err != nil {
		return cors.Policy{}, err
	}
	if spec.MaxAge, _, err = doc.integer(prefix + ".max-age"); err != nil {
		return cors.Policy{}, err
	}
	if spec.Credentials, _, err = doc.boolean(prefix + ".credentials"); err != nil {
		return cors.Policy{}, err
	}
	return cors.NewPolicy(spec)
}

func buildCapabilities(doc document) (capability.Set, error) {
	resources := capability.Resources()
	blocks := make(map[string]map[string]bool, len(resources))
	for _, resource := range resources {
		table, ok := doc.table(resource)
		if !ok {
			continue
		}
		flags := make(map[string]bool, len(table))
		for name := range table {
			if !capability.IsKnown(resource, name) {
				logger.Warn("Ignoring unknown capability",
					slog.String("resource", resource),
					slog.String("capability", name))
				continue
			}
			on, _, err := doc.boolean(resource + "." + name)
			if err != nil {
				return capability.Set{}, err
			}
			flags[name] = on
		}
		blocks[resource] = flags
	}
	return capability.NewSet(blocks), nil
}
