package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/rangecoach/internal/config"
	"github.com/soyeahso/rangecoach/internal/rag"
	"github.com/soyeahso/rangecoach/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show rangecoach status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Rangecoach %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:    %s\n", paths.Config)
			fmt.Printf("Sessions:  %s\n", paths.Sessions)
			fmt.Printf("Knowledge: %s\n", paths.Knowledge)
			fmt.Println()

			cfg, err := config.Load(paths.Config, paths)
			if err != nil {
				fmt.Printf("Config:    error loading: %v\n", err)
				return nil
			}

			fmt.Printf("Gateway:    port=%d bind=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind)
			fmt.Printf("Sessions:   dir=%s max_events=%d\n", cfg.Sessions.Dir, cfg.Sessions.MaxEvents)
			fmt.Printf("LLM:        provider=%s model=%s\n", cfg.LLM.Provider, cfg.LLM.Model)
			fmt.Printf("Embeddings: provider=%s model=%s\n", cfg.Embeddings.Provider, cfg.Embeddings.Model)
			fmt.Printf("Policy:     %d allowed tool(s), %d blocklist pattern(s)\n",
				len(cfg.Policy.AllowedTools), len(cfg.Policy.BlocklistPatterns))

			index := rag.NewStore(cfg.RAG.IndexPath)
			if records, err := index.Load(); err == nil {
				fmt.Printf("Index:      %d record(s), version %s\n", len(records), index.Version())
			} else {
				fmt.Printf("Index:      error reading: %v\n", err)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}
}
