// Package cors resolves the cross-origin policy of each configured listener.
//
// Resolution is a pure lookup. Enforcing the policy on HTTP responses is the
// job of middleware.CORS.
package cors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Wildcard is the origin value that allows any origin.
const Wildcard = "*"

// DefaultMethods are used when a policy does not list methods.
var DefaultMethods = []string{"GET", "HEAD", "POST"}

var (
	// ErrMixedOrigins is returned when "*" is combined with explicit origins.
	ErrMixedOrigins = errors.New("wildcard origin combined with explicit origins")

	// ErrInvalidOrigin is returned for an origin browsers never send, such
	// as one with a trailing slash.
	ErrInvalidOrigin = errors.New("origin must not end with /")

	// ErrNegativeMaxAge is returned for a max-age below zero.
	ErrNegativeMaxAge = errors.New("max-age must not be negative")

	// ErrUnknownListener is returned by Resolve for a listener with no policy.
	ErrUnknownListener = errors.New("unknown listener")
)

// Mode tells the HTTP layer which origin regime is active.
type Mode string

const (
	// ModeDisabled means no CORS headers are emitted.
	ModeDisabled Mode = "disabled"
	// ModeWildcard allows any origin and never allows credentials.
	ModeWildcard Mode = "wildcard"
	// ModeExplicit allows only the enumerated origins.
	ModeExplicit Mode = "explicit"
)

// Spec is the raw per-listener cors block.
type Spec struct {
	Origins     []string
	Methods     []string
	Headers     []string
	MaxAge      int
	Credentials bool
}

// Policy is a resolved, immutable CORS policy. The zero value is disabled.
type Policy struct {
	mode        Mode
	origins     map[string]struct{}
	methods     []string
	headers     []string
	maxAge      int
	credentials bool
}

// NewPolicy validates spec and builds a Policy. An empty origin list yields a
// disabled policy.
func NewPolicy(spec Spec) (Policy, error) {
	if spec.MaxAge < 0 {
		return Policy{}, fmt.Errorf("%w: %d", ErrNegativeMaxAge, spec.MaxAge)
	}

	p := Policy{
		mode:        ModeExplicit,
		origins:     make(map[string]struct{}, len(spec.Origins)),
		maxAge:      spec.MaxAge,
		credentials: spec.Credentials,
	}

	wildcard := false
	for _, o := range spec.Origins {
		o = strings.TrimSpace(o)
		if o == Wildcard {
			wildcard = true
			continue
		}
		if o == "" {
			continue
		}
		if strings.HasSuffix(o, "/") {
			return Policy{}, fmt.Errorf("%w: %q", ErrInvalidOrigin, o)
		}
		p.origins[o] = struct{}{}
	}

	switch {
	case wildcard && len(p.origins) > 0:
		return Policy{}, ErrMixedOrigins
	case wildcard:
		p.mode = ModeWildcard
		p.origins = nil
	case len(p.origins) == 0:
		return Policy{mode: ModeDisabled}, nil
	}

	methods := spec.Methods
	if len(methods) == 0 {
		methods = DefaultMethods
	}
	p.methods = normalize(methods, strings.ToUpper)
	p.headers = normalize(spec.Headers, strings.ToLower)

	return p, nil
}

func normalize(values []string, fold func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = fold(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Mode reports the active origin regime.
func (p Policy) Mode() Mode {
	if p.mode == "" {
		return ModeDisabled
	}
	return p.mode
}

// Origins returns the explicit origin set sorted, or ["*"] in wildcard mode.
func (p Policy) Origins() []string {
	switch p.Mode() {
	case ModeWildcard:
		return []string{Wildcard}
	case ModeDisabled:
		return nil
	}
	out := make([]string, 0, len(p.origins))
	for o := range p.origins {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// Methods returns the allowed methods in configured order.
func (p Policy) Methods() []string { return append([]string(nil), p.methods...) }

// Headers returns the allowed request headers, lower-cased.
func (p Policy) Headers() []string { return append([]string(nil), p.headers...) }

// MaxAge returns the preflight cache lifetime in seconds.
func (p Policy) MaxAge() int { return p.maxAge }

// CredentialsRequested reports whether the configuration asked for credentials.
func (p Policy) CredentialsRequested() bool { return p.credentials }

// AllowCredentials reports whether credentialed responses may be emitted.
// Always false in wildcard mode.
func (p Policy) AllowCredentials() bool {
	return p.credentials && p.Mode() == ModeExplicit
}

// AllowsOrigin reports whether origin may receive CORS headers.
func (p Policy) AllowsOrigin(origin string) bool {
	switch p.Mode() {
	case ModeWildcard:
		return origin != ""
	case ModeExplicit:
		_, ok := p.origins[origin]
		return ok
	}
	return false
}

// AllowsMethod reports whether method is allowed for cross-origin requests.
func (p Policy) AllowsMethod(method string) bool {
	method = strings.ToUpper(method)
	for _, m := range p.methods {
		if m == method {
			return true
		}
	}
	return false
}

// AllowsHeaders reports whether every requested header is allowed.
// Header names are compared case-insensitively.
func (p Policy) AllowsHeaders(requested []string) bool {
	for _, h := range requested {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		found := false
		for _, allowed := range p.headers {
			if allowed == h {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Resolver maps listener names to policies.
type Resolver struct {
	policies map[string]Policy
}

// NewResolver copies policies into a Resolver.
func NewResolver(policies map[string]Policy) Resolver {
	r := Resolver{policies: make(map[string]Policy, len(policies))}
	for name, p := range policies {
		r.policies[name] = p
	}
	return r
}

// Resolve returns the policy of the named listener.
func (r Resolver) Resolve(listener string) (Policy, error) {
	p, ok := r.policies[listener]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownListener, listener)
	}
	return p, nil
}
