package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/rangecoach/internal/advisor"
	"github.com/soyeahso/rangecoach/internal/config"
	"github.com/soyeahso/rangecoach/internal/gateway"
	"github.com/soyeahso/rangecoach/internal/logging"
	"github.com/soyeahso/rangecoach/internal/pipeline"
	"github.com/soyeahso/rangecoach/internal/policy"
	"github.com/soyeahso/rangecoach/internal/rag"
	"github.com/soyeahso/rangecoach/internal/store"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the rangecoach gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config, paths)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// The --log-level flag wins over the config file.
			if logLevel == "" {
				var w io.Writer
				if cfg.Logging.ConsoleStyle == "json" {
					w = os.Stderr
				}
				log = logging.New(w, cfg.Logging.Level)
			}

			sessions, err := store.NewSessionStore(
				cfg.Sessions.Dir,
				cfg.Sessions.MaxEvents,
				time.Duration(cfg.Sessions.LockTimeoutSeconds)*time.Second,
				log,
			)
			if err != nil {
				return fmt.Errorf("opening session store: %w", err)
			}

			cache, err := store.OpenCache(cfg.Embeddings.CachePath, log)
			if err != nil {
				return fmt.Errorf("opening embedding cache: %w", err)
			}
			defer cache.Close()

			embedder := buildEmbedder(cfg, cache)
			index := rag.NewStore(cfg.RAG.IndexPath)
			retriever := rag.NewRetriever(embedder, index, cfg.RAG.TopK, log)
			indexer := rag.NewIndexer(cfg.RAG.SourceDir, cfg.RAG.ChunkSize, embedder, index, log)

			client := buildAdvisor(cfg)
			guard := policy.NewGuard(cfg.Policy.AllowedTools, cfg.Policy.BlocklistPatterns)
			orch := pipeline.NewOrchestrator(sessions, retriever, client, guard, log)

			srv := gateway.New(cfg.Gateway, sessions, orch, indexer, index, log)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().
				Str("llm", cfg.LLM.Provider).
				Str("embeddings", cfg.Embeddings.Provider).
				Str("sessions", cfg.Sessions.Dir).
				Msg("rangecoach starting")

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// buildEmbedder assembles the configured embedding provider wrapped in the
// sqlite-backed memoization layer.
func buildEmbedder(cfg config.Config, cache *store.Cache) rag.Embedder {
	var base rag.Embedder
	switch cfg.Embeddings.Provider {
	case "openai":
		base = rag.NewOpenAIEmbedder(
			cfg.Embeddings.APIKey,
			cfg.Embeddings.BaseURL,
			cfg.Embeddings.Model,
			rag.NewHashEmbedder(rag.DefaultDimensions),
			log,
		)
	default:
		base = rag.NewHashEmbedder(rag.DefaultDimensions)
	}

	namespace := cfg.Embeddings.Provider + ":" + cfg.Embeddings.Model
	ttl := time.Duration(cfg.Embeddings.CacheTTLHours) * time.Hour
	return rag.NewCachedEmbedder(base, cache, namespace, ttl, cfg.Embeddings.CacheMaxEntries, log)
}

// buildAdvisor selects the reasoning backend. Provider "mock" runs the
// offline playbook and never leaves the host.
func buildAdvisor(cfg config.Config) advisor.Client {
	switch cfg.LLM.Provider {
	case "openai":
		return advisor.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, log)
	case "groq":
		baseURL := cfg.LLM.BaseURL
		if baseURL == "" {
			baseURL = groqBaseURL
		}
		return advisor.NewOpenAIClient(cfg.LLM.APIKey, baseURL, cfg.LLM.Model, log)
	default:
		return advisor.NewHeuristic()
	}
}
