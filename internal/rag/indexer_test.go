package rag

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/rangecoach/internal/logging"
)

func TestIndexerRebuild(t *testing.T) {
	sourceDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(sourceDir, "recon_checklist.md"),
		[]byte("Sweep the subnet.\n\nThen enumerate services."), 0o600))
	require.NoError(t, os.WriteFile(
		filepath.Join(sourceDir, "notes.txt"),
		[]byte("Keep evidence for the report."), 0o600))
	require.NoError(t, os.WriteFile(
		filepath.Join(sourceDir, "ignored.pdf"),
		[]byte("binary"), 0o600))

	store := NewStore(filepath.Join(t.TempDir(), "index.jsonl"))
	ix := NewIndexer(sourceDir, 0, NewHashEmbedder(32), store, logging.New(io.Discard, "silent"))

	count, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	records, err := store.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.NotEmpty(t, record.RecordID)
		assert.NotEmpty(t, record.Metadata["source"])
		assert.Len(t, record.Embedding, 32)
	}
}

func TestIndexerMissingSourceDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "index.jsonl"))
	ix := NewIndexer(filepath.Join(t.TempDir(), "absent"), 0, NewHashEmbedder(32), store, logging.New(io.Discard, "silent"))

	count, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	records, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIndexerRebuildReplacesWholesale(t *testing.T) {
	sourceDir := t.TempDir()
	docPath := filepath.Join(sourceDir, "doc.md")
	require.NoError(t, os.WriteFile(docPath, []byte("first version"), 0o600))

	store := NewStore(filepath.Join(t.TempDir(), "index.jsonl"))
	ix := NewIndexer(sourceDir, 0, NewHashEmbedder(32), store, logging.New(io.Discard, "silent"))

	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	versionBefore := store.Version()

	require.NoError(t, os.WriteFile(docPath, []byte("second version with more detail"), 0o600))
	count, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NotEqual(t, versionBefore, store.Version())

	records, err := store.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Text, "second version")
}

func TestChunkDocumentPacksParagraphs(t *testing.T) {
	content := strings.Join([]string{
		"Paragraph one is short.",
		"Paragraph two is also short.",
		"Paragraph three pushes past the limit when combined.",
	}, "\n\n")

	chunks := chunkDocument("docs/guide.md", content, 60)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Text), 60, "chunk %d oversized", i)
		assert.Equal(t, "docs/guide.md", chunk.Metadata["source"])
	}
	assert.Equal(t, "guide-000", chunks[0].ChunkID)

	// All paragraphs survive the split.
	joined := ""
	for _, chunk := range chunks {
		joined += chunk.Text + "\n\n"
	}
	assert.Contains(t, joined, "Paragraph one")
	assert.Contains(t, joined, "Paragraph three")
}

func TestChunkDocumentOversizedParagraphKeptWhole(t *testing.T) {
	long := strings.Repeat("word ", 100)
	chunks := chunkDocument("big.txt", long, 50)
	require.Len(t, chunks, 1)
	assert.Greater(t, len(chunks[0].Text), 50)
}

func TestChunkDocumentEmptyContent(t *testing.T) {
	assert.Empty(t, chunkDocument("empty.md", "   \n\n  ", 100))
}
