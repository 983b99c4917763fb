package config

// Config is the root configuration for rangecoach.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Sessions   SessionsConfig   `yaml:"sessions,omitempty"`
	RAG        RAGConfig        `yaml:"rag,omitempty"`
	LLM        LLMConfig        `yaml:"llm,omitempty"`
	Embeddings EmbeddingsConfig `yaml:"embeddings,omitempty"`
	Policy     PolicyConfig     `yaml:"policy,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket API server.
type GatewayConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// SessionsConfig controls the durable session store.
type SessionsConfig struct {
	Dir                string `yaml:"dir,omitempty"`
	MaxEvents          int    `yaml:"maxEvents,omitempty"`
	LockTimeoutSeconds int    `yaml:"lockTimeoutSeconds,omitempty"`
}

// RAGConfig controls the knowledge-base index and retriever.
type RAGConfig struct {
	SourceDir string `yaml:"sourceDir,omitempty"`
	IndexPath string `yaml:"indexPath,omitempty"`
	TopK      int    `yaml:"topK,omitempty"`
	ChunkSize int    `yaml:"chunkSize,omitempty"`
}

// LLMConfig selects the reasoning model provider. Provider "mock" runs the
// built-in playbook with no network access.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"` // "mock" | "openai" | "groq"
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"baseUrl,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty"`
}

// EmbeddingsConfig selects the embedding provider and its cache.
type EmbeddingsConfig struct {
	Provider        string `yaml:"provider,omitempty"` // "hash" | "openai"
	Model           string `yaml:"model,omitempty"`
	BaseURL         string `yaml:"baseUrl,omitempty"`
	APIKey          string `yaml:"apiKey,omitempty"`
	CachePath       string `yaml:"cachePath,omitempty"`
	CacheTTLHours   int    `yaml:"cacheTtlHours,omitempty"`
	CacheMaxEntries int    `yaml:"cacheMaxEntries,omitempty"`
}

// PolicyConfig defines the safety guard's tool allowlist and command
// blocklist.
type PolicyConfig struct {
	AllowedTools      []string `yaml:"allowedTools,omitempty"`
	BlocklistPatterns []string `yaml:"blocklistPatterns,omitempty"`
}
