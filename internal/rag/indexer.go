package rag

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/soyeahso/rangecoach/internal/logging"
)

// Chunk is one pre-embedding slice of a source document.
type Chunk struct {
	ChunkID  string
	Text     string
	Metadata map[string]string
}

// Indexer rebuilds the vector index from a knowledge-base directory of
// .md/.txt files.
type Indexer struct {
	sourceDir string
	chunkSize int
	embedder  Embedder
	store     *Store
	log       *logging.Logger
}

// NewIndexer creates an indexer. chunkSize <= 0 defaults to 1200.
func NewIndexer(sourceDir string, chunkSize int, embedder Embedder, store *Store, log *logging.Logger) *Indexer {
	if chunkSize <= 0 {
		chunkSize = 1200
	}
	return &Indexer{
		sourceDir: sourceDir,
		chunkSize: chunkSize,
		embedder:  embedder,
		store:     store,
		log:       log.Sub("indexer"),
	}
}

// Rebuild re-chunks the whole corpus, embeds every chunk in one batch, and
// replaces the store wholesale. Returns the number of indexed chunks.
func (ix *Indexer) Rebuild(ctx context.Context) (int, error) {
	chunks, err := ix.loadAndChunk()
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		if err := ix.store.Replace(nil); err != nil {
			return 0, err
		}
		ix.log.Info().Str("source", ix.sourceDir).Msg("no documents found, index emptied")
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed corpus: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings))
	}

	records := make([]Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = Record{
			RecordID:  chunk.ChunkID,
			Text:      chunk.Text,
			Metadata:  chunk.Metadata,
			Embedding: embeddings[i],
		}
	}
	if err := ix.store.Replace(records); err != nil {
		return 0, err
	}

	ix.log.Info().Int("chunks", len(records)).Str("source", ix.sourceDir).Msg("index rebuilt")
	return len(records), nil
}

func (ix *Indexer) loadAndChunk() ([]Chunk, error) {
	var chunks []Chunk

	err := filepath.WalkDir(ix.sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == ix.sourceDir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			return nil
		}
		chunks = append(chunks, chunkDocument(path, string(content), ix.chunkSize)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// chunkDocument splits a document on paragraph boundaries, packing
// paragraphs into chunks up to chunkSize characters.
func chunkDocument(path, content string, chunkSize int) []Chunk {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var chunks []Chunk
	var buffer string
	index := 0

	emit := func() {
		if buffer == "" {
			return
		}
		chunks = append(chunks, Chunk{
			ChunkID: fmt.Sprintf("%s-%03d", stem, index),
			Text:    buffer,
			Metadata: map[string]string{
				"source": path,
				"chunk":  fmt.Sprintf("%d", index),
			},
		})
		index++
		buffer = ""
	}

	for _, paragraph := range strings.Split(content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		candidate := paragraph
		if buffer != "" {
			candidate = buffer + "\n\n" + paragraph
		}
		if len(candidate) <= chunkSize {
			buffer = candidate
			continue
		}
		emit()
		buffer = paragraph
	}
	emit()
	return chunks
}
