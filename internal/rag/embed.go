// Package rag provides the local vector index, embedding providers, and the
// re-ranking retriever over them.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
)

// Embedder turns texts into fixed-length vectors. Output has the same
// length and order as the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// DefaultDimensions is the vector width of the hashing embedder.
const DefaultDimensions = 384

// HashEmbedder is a deterministic, fully offline embedder. Each token is
// hashed into a bucket and the resulting count vector is L2-normalized.
// Not semantically strong, but a dependable fallback when no embedding
// service is reachable.
type HashEmbedder struct {
	Dimensions int
}

// NewHashEmbedder creates a hashing embedder. dimensions <= 0 selects
// DefaultDimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashEmbedder{Dimensions: dimensions}
}

// Embed never fails; it exists to satisfy Embedder.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = h.embedOne(text)
	}
	return out, nil
}

func (h *HashEmbedder) embedOne(text string) []float64 {
	vector := make([]float64, h.Dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(token))
		bucket := binary.BigEndian.Uint64(sum[:8]) % uint64(h.Dimensions)
		vector[bucket]++
	}

	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range vector {
		vector[i] /= norm
	}
	return vector
}
