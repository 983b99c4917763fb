package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so API keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	cfg.Embeddings.APIKey = expandEnvVars(cfg.Embeddings.APIKey)
}

// Load reads the config file, applies defaults, environment overrides, and
// path resolution. A missing file produces defaults only.
func Load(path string, paths Paths) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyPathDefaults(&cfg, paths)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes the generic config map back to disk as YAML, creating the
// parent directory if needed.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return &ConfigError{Message: "failed to encode config: " + err.Error()}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()

	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = def.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = def.Gateway.Bind
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = def.Logging.ConsoleStyle
	}
	if cfg.Sessions.MaxEvents == 0 {
		cfg.Sessions.MaxEvents = def.Sessions.MaxEvents
	}
	if cfg.Sessions.LockTimeoutSeconds == 0 {
		cfg.Sessions.LockTimeoutSeconds = def.Sessions.LockTimeoutSeconds
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = def.RAG.TopK
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = def.RAG.ChunkSize
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = def.LLM.Provider
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = def.Embeddings.Provider
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = def.Embeddings.Model
	}
	if cfg.Embeddings.CacheTTLHours == 0 {
		cfg.Embeddings.CacheTTLHours = def.Embeddings.CacheTTLHours
	}
	if cfg.Embeddings.CacheMaxEntries == 0 {
		cfg.Embeddings.CacheMaxEntries = def.Embeddings.CacheMaxEntries
	}
	if cfg.Policy.AllowedTools == nil {
		cfg.Policy.AllowedTools = def.Policy.AllowedTools
	}
	if cfg.Policy.BlocklistPatterns == nil {
		cfg.Policy.BlocklistPatterns = def.Policy.BlocklistPatterns
	}
}

// applyPathDefaults resolves empty or relative data paths against the base
// directory.
func applyPathDefaults(cfg *Config, paths Paths) {
	cfg.Sessions.Dir = resolvePath(cfg.Sessions.Dir, paths.Sessions, paths.Base)
	cfg.RAG.SourceDir = resolvePath(cfg.RAG.SourceDir, paths.Knowledge, paths.Base)
	cfg.RAG.IndexPath = resolvePath(cfg.RAG.IndexPath, paths.Index, paths.Base)
	cfg.Embeddings.CachePath = resolvePath(cfg.Embeddings.CachePath, paths.Cache, paths.Base)
}

func resolvePath(configured, fallback, base string) string {
	if configured == "" {
		return fallback
	}
	if filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(base, configured)
}

// applyEnvOverrides reads RANGECOACH_* environment variables and overrides
// config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RANGECOACH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("RANGECOACH_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("RANGECOACH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("RANGECOACH_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("RANGECOACH_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
}
