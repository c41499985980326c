// Package config provides the layered, read-once configuration store shared
// by every component.
//
// Configuration is merged from a directory of YAML layers over built-in
// defaults. Each layer file owns a namespace matching its stem
// (patterns.yaml populates "patterns.*", icons.yaml "icons.*", ...) except
// settings.yaml, which merges at the root. Lookup precedence, highest wins:
//
//	environment override (UPPER_SNAKE_CASE of the dotted key)
//	> merged configuration files
//	> built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Layer files read from the config directory, in merge order.
// settings.yaml merges at the root; every other file is namespaced by stem.
var layerFiles = []string{
	"settings.yaml",
	"projects.yaml",
	"patterns.yaml",
	"durations.yaml",
	"icons.yaml",
	"prompts.yaml",
}

// Store is a read-once snapshot of the merged configuration.
// It is safe for concurrent readers; Reload swaps the snapshot atomically.
type Store struct {
	dir    string
	getenv func(string) string

	mu     sync.RWMutex
	merged map[string]any
}

// Option configures a Store.
type Option func(*Store)

// WithGetenv sets the environment lookup function (for testing).
func WithGetenv(fn func(string) string) Option {
	return func(s *Store) { s.getenv = fn }
}

// Load reads the configuration directory and returns a merged Store.
// A missing directory or missing layer files are not errors: the built-in
// defaults cover every key the pipeline requires. A malformed YAML file is
// an error, because silently dropping a layer would mask typos.
func Load(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:    dir,
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the configuration directory this store was loaded from.
func (s *Store) Dir() string { return s.dir }

// Reload re-reads every layer file and swaps the merged snapshot.
func (s *Store) Reload() error { return s.reload() }

func (s *Store) reload() error {
	merged := defaults()

	for _, name := range layerFiles {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path) // #nosec G304 -- path is built from the configured dir
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read config layer %s: %w", name, err)
		}

		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse config layer %s: %w", name, err)
		}

		if name == "settings.yaml" {
			deepMerge(merged, doc)
			continue
		}
		stem := strings.TrimSuffix(name, ".yaml")
		ns, ok := merged[stem].(map[string]any)
		if !ok {
			ns = make(map[string]any)
			merged[stem] = ns
		}
		deepMerge(ns, doc)
	}

	s.mu.Lock()
	s.merged = merged
	s.mu.Unlock()
	return nil
}

// Set writes a dotted key into settings.yaml and reloads the snapshot.
// Only the settings layer is writable; the namespaced layers (patterns,
// prompts, ...) are edited by hand. The file is rewritten atomically so an
// interrupted write never leaves a half-parsed layer behind.
func (s *Store) Set(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrBadValue)
	}

	path := filepath.Join(s.dir, "settings.yaml")
	doc := make(map[string]any)
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from the configured dir
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse config layer settings.yaml: %w", err)
		}
		if doc == nil {
			doc = make(map[string]any)
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("read config layer settings.yaml: %w", err)
	}

	cur := doc
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode settings.yaml: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := renameio.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write settings.yaml: %w", err)
	}
	return s.reload()
}

// Snapshot returns the merged configuration flattened to dotted keys,
// sorted for stable listing. Environment overrides are not applied; the
// snapshot shows what the files and defaults resolve to.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any)
	flatten("", s.merged, out)
	return out
}

// Keys returns the dotted keys of the merged configuration in sorted order.
func (s *Store) Keys() []string {
	snap := s.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}

// deepMerge overlays src onto dst, descending into nested maps.
// Non-map values (including lists) replace wholesale.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				deepMerge(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}

// EnvKey returns the environment variable name that overrides a dotted key.
// Example: "transcribe.workers" -> "TRANSCRIBE_WORKERS".
func EnvKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Get returns the value for a dotted key, or def when absent everywhere.
// An environment override wins over file and default values; its string
// value is returned as-is (use the typed helpers for parsing).
func (s *Store) Get(key string, def any) any {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

// Require returns the value for a dotted key or ErrMissingKey.
// Components call Require for keys without a sensible default (API tokens,
// collection ids); the CLI maps the error to a fatal exit.
func (s *Store) Require(key string) (any, error) {
	if v, ok := s.lookup(key); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s (set %s or add it to %s)",
		ErrMissingKey, key, EnvKey(key), filepath.Join(s.dir, "settings.yaml"))
}

// RequireString is Require for string-valued keys.
func (s *Store) RequireString(key string) (string, error) {
	v, err := s.Require(key)
	if err != nil {
		return "", err
	}
	str := fmt.Sprintf("%v", v)
	if strings.TrimSpace(str) == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMissingKey, key)
	}
	return str, nil
}

// lookup resolves a dotted key through env, then the merged snapshot.
func (s *Store) lookup(key string) (any, bool) {
	if env := s.getenv(EnvKey(key)); env != "" {
		return env, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var cur any = s.merged
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the string value for key, or def when absent.
func (s *Store) String(key, def string) string {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	return fmt.Sprintf("%v", v)
}

// Int returns the integer value for key, or def when absent or unparsable.
func (s *Store) Int(key string, def int) int {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return def
}

// Float returns the float value for key, or def when absent or unparsable.
func (s *Store) Float(key string, def float64) float64 {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return parsed
		}
	}
	return def
}

// Bool returns the boolean value for key, or def when absent or unparsable.
func (s *Store) Bool(key string, def bool) bool {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	return def
}

// Duration returns the duration value for key, or def when absent.
// File values accept Go duration syntax ("90s", "7m") or a bare number of
// seconds; environment overrides accept the same.
func (s *Store) Duration(key string, def time.Duration) time.Duration {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch d := v.(type) {
	case int:
		return time.Duration(d) * time.Second
	case int64:
		return time.Duration(d) * time.Second
	case float64:
		return time.Duration(d * float64(time.Second))
	case string:
		trimmed := strings.TrimSpace(d)
		if parsed, err := time.ParseDuration(trimmed); err == nil {
			return parsed
		}
		if secs, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return def
}

// Strings returns the string-list value for key, or def when absent.
// Environment overrides use comma separation.
func (s *Store) Strings(key string, def []string) []string {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		parts := strings.Split(list, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return def
}

// StringMap returns the string-to-string map for key, or nil when absent.
func (s *Store) StringMap(key string) map[string]string {
	v, ok := s.lookup(key)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = fmt.Sprintf("%v", val)
	}
	return out
}

// Decode re-marshals the subtree at key into out. This is the typed access
// path for structured sections (icon entries, fallback project lists).
func (s *Store) Decode(key string, out any) error {
	v, ok := s.lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode config subtree %s: %w", key, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode config subtree %s: %w", key, err)
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
