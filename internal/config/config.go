package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"conduit/internal/capability"
	"conduit/internal/cors"
)

// ErrInvalidConfig wraps every configuration error that must stop the process
// from serving traffic.
var ErrInvalidConfig = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Service names a listener may enable.
const (
	ServiceUser    = "User"
	ServiceProfile = "Profile"
	ServiceArticle = "Article"
	ServiceTag     = "Tag"
)

// KnownServices lists every service name accepted in a listener's services list.
var KnownServices = []string{ServiceUser, ServiceProfile, ServiceArticle, ServiceTag}

const (
	defaultBacklog = 2048
)

// Config is a resolved deployment configuration snapshot.
// A Config is shared between goroutines and must be treated as read-only.
type Config struct {
	Debug        bool
	DatabaseURL  string
	Servers      []string
	Listeners    map[string]Listener
	Capabilities capability.Set
	CORS         cors.Resolver
	// Sources lists the files merged into this snapshot, in merge order.
	Sources []string
}

// Listener holds the per-server settings handed to the server runtime.
type Listener struct {
	Name     string      `json:"name"`
	Address  string      `json:"listen"`
	Workers  int         `json:"workers"`
	Backlog  int         `json:"backlog"`
	Services []string    `json:"services"`
	CORS     cors.Policy `json:"-"`
}

// Validate checks the listener settings.
func (l Listener) Validate() error {
	known := make([]interface{}, len(KnownServices))
	for i, s := range KnownServices {
		known[i] = s
	}
	return validation.ValidateStruct(&l,
		validation.Field(&l.Address,
			validation.Required.Error("listen is required"),
		),
		validation.Field(&l.Workers,
			validation.Required.Error("workers must be a positive integer"),
			validation.Min(1).Error("workers must be a positive integer"),
		),
		validation.Field(&l.Backlog,
			validation.Required.Error("backlog must be a positive integer"),
			validation.Min(1).Error("backlog must be a positive integer"),
		),
		validation.Field(&l.Services,
			validation.Required.Error("services must list at least one service"),
			validation.Each(validation.In(known...).Error("unknown service")),
		),
	)
}

// HasService reports whether the listener enables the named service.
func (l Listener) HasService(name string) bool {
	for _, s := range l.Services {
		if s == name {
			return true
		}
	}
	return false
}

// Listener returns the settings of the named active listener.
func (c *Config) Listener(name string) (Listener, bool) {
	l, ok := c.Listeners[name]
	return l, ok
}

// Capability resolves a capability flag. Unknown or absent flags are false.
func (c *Config) Capability(resource, name string) bool {
	return c.Capabilities.Resolve(resource, name)
}

// CORSPolicy resolves the CORS policy of the named listener.
func (c *Config) CORSPolicy(listener string) (cors.Policy, error) {
	return c.CORS.Resolve(listener)
}

// RedactedDatabaseURL returns the database URL with any password masked.
func (c *Config) RedactedDatabaseURL() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "(unparseable)"
	}
	return u.Redacted()
}

// View is the JSON shape of a Config used by `config show`.
type View struct {
	Debug        bool              `json:"debug"`
	DatabaseURL  string            `json:"db_url"`
	Servers      []string          `json:"servers"`
	Listeners    []ListenerView    `json:"listeners"`
	Capabilities []capability.Flag `json:"capabilities"`
}

// ListenerView is the JSON shape of a Listener including its CORS policy.
type ListenerView struct {
	Listener
	CORS CORSView `json:"cors"`
}

// CORSView is the JSON shape of a cors.Policy.
type CORSView struct {
	Mode             cors.Mode `json:"mode"`
	Origins          []string  `json:"origins"`
	Methods          []string  `json:"methods"`
	Headers          []string  `json:"headers"`
	MaxAge           int       `json:"max_age"`
	AllowCredentials bool      `json:"allow_credentials"`
}

// View renders the snapshot for display with secrets redacted.
func (c *Config) View() View {
	v := View{
		Debug:        c.Debug,
		DatabaseURL:  c.RedactedDatabaseURL(),
		Servers:      append([]string(nil), c.Servers...),
		Capabilities: c.Capabilities.Enabled(),
	}
	names := append([]string(nil), c.Servers...)
	sort.Strings(names)
	for _, name := range names {
		l := c.Listeners[name]
		v.Listeners = append(v.Listeners, ListenerView{
			Listener: l,
			CORS: CORSView{
				Mode:             l.CORS.Mode(),
				Origins:          l.CORS.Origins(),
				Methods:          l.CORS.Methods(),
				Headers:          l.CORS.Headers(),
				MaxAge:           l.CORS.MaxAge(),
				AllowCredentials: l.CORS.AllowCredentials(),
			},
		})
	}
	return v
}
