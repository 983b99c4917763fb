package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/rangecoach/internal/config"
	"github.com/soyeahso/rangecoach/internal/rag"
	"github.com/soyeahso/rangecoach/internal/store"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the knowledge-base index",
	}

	cmd.AddCommand(newIndexRebuildCmd())
	cmd.AddCommand(newIndexStatusCmd())

	return cmd
}

func newIndexRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Re-embed all knowledge documents and replace the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config, paths)
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			cache, err := store.OpenCache(cfg.Embeddings.CachePath, log)
			if err != nil {
				return fmt.Errorf("opening embedding cache: %w", err)
			}
			defer cache.Close()

			embedder := buildEmbedder(cfg, cache)
			index := rag.NewStore(cfg.RAG.IndexPath)
			indexer := rag.NewIndexer(cfg.RAG.SourceDir, cfg.RAG.ChunkSize, embedder, index, log)

			count, err := indexer.Rebuild(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Indexed %d chunk(s) from %s\n", count, cfg.RAG.SourceDir)
			return nil
		},
	}
}

func newIndexStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index size and version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config, paths)
			if err != nil {
				return err
			}

			index := rag.NewStore(cfg.RAG.IndexPath)
			records, err := index.Load()
			if err != nil {
				return err
			}

			fmt.Printf("Index:   %s\n", cfg.RAG.IndexPath)
			fmt.Printf("Records: %d\n", len(records))
			fmt.Printf("Version: %s\n", index.Version())
			return nil
		},
	}
}
