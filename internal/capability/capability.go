// Package capability holds the per-deployment feature toggles that gate
// registration, updates, deletes and comments for each resource type.
//
// The set of toggles is fixed. Anything not listed here, or listed but absent
// from configuration, resolves to disabled.
package capability

import "sort"

// Resource types that carry capability blocks.
const (
	User    = "User"
	Profile = "Profile"
	Article = "Article"
)

// Capability names.
const (
	AllowRegister = "allow_register"
	AllowUpdate   = "allow_update"
	AllowDelete   = "allow_delete"
	AllowComments = "allow_comments"
)

// known lists every (resource type, capability) pair a deployment can enable.
var known = map[string][]string{
	User:    {AllowRegister},
	Profile: {AllowUpdate},
	Article: {AllowUpdate, AllowDelete, AllowComments},
}

// Resources returns the resource types that carry capabilities, sorted.
func Resources() []string {
	resources := make([]string, 0, len(known))
	for resource := range known {
		resources = append(resources, resource)
	}
	sort.Strings(resources)
	return resources
}

// Names returns a copy of the capability names defined for resource.
func Names(resource string) []string {
	return append([]string(nil), known[resource]...)
}

// IsKnown reports whether (resource, name) is one of the enumerated pairs.
func IsKnown(resource, name string) bool {
	for _, n := range known[resource] {
		if n == name {
			return true
		}
	}
	return false
}

type key struct {
	resource string
	name     string
}

// Set is an immutable resolved capability set.
// The zero value has every capability disabled.
type Set struct {
	enabled map[key]struct{}
}

// Flag is one enabled capability.
type Flag struct {
	Resource string `json:"resource"`
	Name     string `json:"name"`
}

// NewSet builds a Set from configuration blocks keyed by resource type and
// then capability name. Unknown pairs are dropped.
func NewSet(blocks map[string]map[string]bool) Set {
	s := Set{enabled: make(map[key]struct{})}
	for resource, flags := range blocks {
		for name, on := range flags {
			if on && IsKnown(resource, name) {
				s.enabled[key{resource, name}] = struct{}{}
			}
		}
	}
	return s
}

// Resolve returns whether the capability is enabled. Unknown pairs and
// absent flags return false.
func (s Set) Resolve(resource, name string) bool {
	_, ok := s.enabled[key{resource, name}]
	return ok
}

// CommentsEnabled reports whether comments may be created or deleted.
func (s Set) CommentsEnabled() bool {
	return s.Resolve(Article, AllowComments)
}

// Enabled returns the enabled capabilities ordered by resource then name.
func (s Set) Enabled() []Flag {
	flags := make([]Flag, 0, len(s.enabled))
	for k := range s.enabled {
		flags = append(flags, Flag{Resource: k.resource, Name: k.name})
	}
	sort.Slice(flags, func(i, j int) bool {
		if flags[i].Resource != flags[j].Resource {
			return flags[i].Resource < flags[j].Resource
		}
		return flags[i].Name < flags[j].Name
	})
	return flags
}

// For returns the enabled capabilities of the given resource types only.
func (s Set) For(resources ...string) []Flag {
	want := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		want[r] = struct{}{}
	}
	var flags []Flag
	for _, f := range s.Enabled() {
		if _, ok := want[f.Resource]; ok {
			flags = append(flags, f)
		}
	}
	return flags
}
