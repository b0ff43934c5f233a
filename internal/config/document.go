package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// document is a decoded configuration file. Keys are addressed with dotted
// paths such as "public.cors.max-age".
type document map[string]any

// readDocument decodes a TOML or YAML file chosen by extension.
func readDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	doc := document{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, (*map[string]any)(&doc)); err != nil {
			return nil, fmt.Errorf("%w: parse TOML %s: %v", ErrInvalidConfig, path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, (*map[string]any)(&doc)); err != nil {
			return nil, fmt.Errorf("%w: parse YAML %s: %v", ErrInvalidConfig, path, err)
		}
	default:
		return nil, invalid("unsupported config format %q for %s", ext, path)
	}
	return doc, nil
}

// merge overlays src onto d. Tables merge key by key; any other value in src
// replaces the value in d.
func (d document) merge(src document) {
	mergeTables(d, src)
}

func mergeTables(dst, src map[string]any) {
	for k, v := range src {
		srcTable, srcIsTable := asTable(v)
		dstTable, dstIsTable := asTable(dst[k])
		if srcIsTable && dstIsTable {
			mergeTables(dstTable, srcTable)
			continue
		}
		dst[k] = v
	}
}

func asTable(v any) (map[string]any, bool) {
	t, ok := v.(map[string]any)
	return t, ok
}

// set assigns value at a dotted path, creating intermediate tables.
func (d document) set(path string, value any) {
	parts := strings.Split(path, ".")
	table := map[string]any(d)
	for _, p := range parts[:len(parts)-1] {
		next, ok := asTable(table[p])
		if !ok {
			next = map[string]any{}
			table[p] = next
		}
		table = next
	}
	table[parts[len(parts)-1]] = value
}

func (d document) lookup(path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = map[string]any(d)
	for _, p := range parts {
		table, ok := asTable(cur)
		if !ok {
			return nil, false
		}
		cur, ok = table[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (d document) str(path string) (string, bool, error) {
	v, ok := d.lookup(path)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, invalid("%s must be a string, got %T", path, v)
	}
	return s, true, nil
}

func (d document) boolean(path string) (bool, bool, error) {
	v, ok := d.lookup(path)
	if !ok {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, true, invalid("%s must be a boolean, got %T", path, v)
	}
	return b, true, nil
}

func (d document) integer(path string) (int, bool, error) {
	v, ok := d.lookup(path)
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case uint64:
		if n > math.MaxInt32 {
			return 0, true, invalid("%s is out of range", path)
		}
		return int(n), true, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, true, invalid("%s must be an integer, got %v", path, n)
		}
		return int(n), true, nil
	}
	return 0, true, invalid("%s must be an integer, got %T", path, v)
}

// strings accepts a list of strings or a single string.
func (d document) strings(path string) ([]string, bool, error) {
	v, ok := d.lookup(path)
	if !ok {
		return nil, false, nil
	}
	switch list := v.(type) {
	case string:
		return []string{list}, true, nil
	case []string:
		return append([]string(nil), list...), true, nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, true, invalid("%s[%d] must be a string, got %T", path, i, item)
			}
			out = append(out, s)
		}
		return out, true, nil
	}
	return nil, true, invalid("%s must be a string or a list of strings, got %T", path, v)
}

func (d document) table(path string) (map[string]any, bool) {
	v, ok := d.lookup(path)
	if !ok {
		return nil, false
	}
	return asTable(v)
}
