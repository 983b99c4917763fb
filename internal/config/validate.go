package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind is custom",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	if cfg.Sessions.MaxEvents < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "sessions.maxEvents",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Sessions.MaxEvents),
		})
	}
	if cfg.Sessions.LockTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "sessions.lockTimeoutSeconds",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Sessions.LockTimeoutSeconds),
		})
	}

	if cfg.RAG.TopK < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "rag.topK",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.RAG.TopK),
		})
	}
	if cfg.RAG.ChunkSize < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "rag.chunkSize",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.RAG.ChunkSize),
		})
	}

	validProviders := []string{"mock", "openai", "groq"}
	if cfg.LLM.Provider != "" && !slices.Contains(validProviders, cfg.LLM.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "llm.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.LLM.Provider),
		})
	}
	if (cfg.LLM.Provider == "openai" || cfg.LLM.Provider == "groq") && cfg.LLM.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "llm.apiKey",
			Message: fmt.Sprintf("required when provider is %q", cfg.LLM.Provider),
		})
	}

	validEmbedProviders := []string{"hash", "openai"}
	if cfg.Embeddings.Provider != "" && !slices.Contains(validEmbedProviders, cfg.Embeddings.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "embeddings.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validEmbedProviders, cfg.Embeddings.Provider),
		})
	}
	if cfg.Embeddings.Provider == "openai" && cfg.Embeddings.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "embeddings.apiKey",
			Message: "required when provider is openai",
		})
	}

	return issues
}
