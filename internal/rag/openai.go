package rag

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soyeahso/rangecoach/internal/logging"
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint. On any
// failure it degrades to the fallback embedder so the pipeline keeps
// working offline.
type OpenAIEmbedder struct {
	client   *openai.Client
	model    string
	fallback Embedder
	log      *logging.Logger
}

// NewOpenAIEmbedder creates a remote embedder. baseURL may be empty for the
// default endpoint; fallback must not be nil.
func NewOpenAIEmbedder(apiKey, baseURL, model string, fallback Embedder, log *logging.Logger) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		fallback: fallback,
		log:      log.Sub("embedder"),
	}
}

// Embed requests embeddings for all texts in one batch call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("remote embedding failed, using hashing fallback")
		return e.fallback.Embed(ctx, texts)
	}
	if len(resp.Data) != len(texts) {
		e.log.Warn().
			Int("want", len(texts)).
			Int("got", len(resp.Data)).
			Msg("embedding response size mismatch, using hashing fallback")
		return e.fallback.Embed(ctx, texts)
	}

	out := make([][]float64, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		vec := make([]float64, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float64(v)
		}
		out[item.Index] = vec
	}
	return out, nil
}
