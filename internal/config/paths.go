package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".rangecoach"

// Paths holds resolved filesystem paths for rangecoach data.
type Paths struct {
	Base      string // ~/.rangecoach
	Config    string // ~/.rangecoach/config.yaml
	Sessions  string // ~/.rangecoach/sessions
	Knowledge string // ~/.rangecoach/knowledge
	Index     string // ~/.rangecoach/index/index.jsonl
	Cache     string // ~/.rangecoach/cache/cache.db
	Logs      string // ~/.rangecoach/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If RANGECOACH_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("RANGECOACH_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:      base,
		Config:    filepath.Join(base, "config.yaml"),
		Sessions:  filepath.Join(base, "sessions"),
		Knowledge: filepath.Join(base, "knowledge"),
		Index:     filepath.Join(base, "index", "index.jsonl"),
		Cache:     filepath.Join(base, "cache", "cache.db"),
		Logs:      filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{
		p.Base, p.Sessions, p.Knowledge,
		filepath.Dir(p.Index), filepath.Dir(p.Cache), p.Logs,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// ParseConfigPath splits a dot-separated config path into segments.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath writes a value into the nested map, creating intermediate
// maps as needed. A non-map intermediate value is replaced.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath removes the value at the given path. Returns false if the
// path does not resolve.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}
