package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied. Paths are left
// empty here and resolved against the base directory at load time.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 8088,
			Bind: "loopback",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
		Sessions: SessionsConfig{
			MaxEvents:          600,
			LockTimeoutSeconds: 10,
		},
		RAG: RAGConfig{
			TopK:      4,
			ChunkSize: 1200,
		},
		LLM: LLMConfig{
			Provider: "mock",
			Model:    "gpt-4o-mini",
		},
		Embeddings: EmbeddingsConfig{
			Provider:        "hash",
			Model:           "text-embedding-3-small",
			CacheTTLHours:   24 * 14,
			CacheMaxEntries: 50000,
		},
		Policy: PolicyConfig{
			AllowedTools: []string{
				"nmap", "masscan", "naabu", "gobuster", "ffuf", "nikto",
				"curl", "wget", "sqlmap", "hydra", "netcat", "nc",
				"python", "bash", "sh", "whoami", "id", "cat", "ls", "echo",
			},
			BlocklistPatterns: []string{
				"rm -rf", "shutdown", "reboot", "powershell remove-item",
				"format c:", "mkfs", "dd if=",
			},
		},
	}
}
