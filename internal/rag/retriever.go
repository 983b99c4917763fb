package rag

import (
	"context"
	"sort"
	"strings"

	"github.com/soyeahso/rangecoach/internal/logging"
)

// Focus biases retrieval toward one keyword family.
type Focus string

const (
	FocusAuto   Focus = "auto"
	FocusRecon  Focus = "recon"
	FocusReport Focus = "report"
)

// IsValid reports whether f is a known focus selector.
func (f Focus) IsValid() bool {
	return f == FocusAuto || f == FocusRecon || f == FocusReport
}

// RetrievedContext is one reference snippet returned to the pipeline.
type RetrievedContext struct {
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

// keywordBoost is the fixed additive score bump for candidates matching
// the query's keyword family.
const keywordBoost = 0.15

var reportQueryKeywords = []string{"report", "template", "timeline", "findings", "final notes"}
var reconQueryKeywords = []string{"recon", "reconnaissance", "inventory", "checklist"}

// Retriever wraps the vector store with query embedding, keyword boosts,
// and an optional focus filter.
type Retriever struct {
	embedder Embedder
	store    *Store
	topK     int
	log      *logging.Logger
}

// NewRetriever builds a retriever. topK <= 0 defaults to 4.
func NewRetriever(embedder Embedder, store *Store, topK int, log *logging.Logger) *Retriever {
	if topK <= 0 {
		topK = 4
	}
	return &Retriever{embedder: embedder, store: store, topK: topK, log: log.Sub("retriever")}
}

// IndexVersion exposes the underlying index's version token for cache keys.
func (r *Retriever) IndexVersion() string {
	return r.store.Version()
}

// Query embeds the text, searches with over-fetch, applies keyword boosts
// and the focus filter, and returns the top-k snippets.
func (r *Retriever) Query(ctx context.Context, text string, focus Focus) ([]RetrievedContext, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, nil
	}

	// Over-fetch so re-ranking has room to reorder within the pool.
	fetch := 2 * r.topK
	if fetch < r.topK {
		fetch = r.topK
	}
	matches, err := r.store.Search(vectors[0], fetch)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	query := strings.ToLower(text)
	wantReport := containsAny(query, reportQueryKeywords)
	wantRecon := containsAny(query, reconQueryKeywords)

	boosted := make([]Match, len(matches))
	copy(boosted, matches)
	for i := range boosted {
		if wantReport && matchesFamily(boosted[i].Record, FocusReport) {
			boosted[i].Score += keywordBoost
		}
		if wantRecon && matchesFamily(boosted[i].Record, FocusRecon) {
			boosted[i].Score += keywordBoost
		}
	}
	sort.SliceStable(boosted, func(i, j int) bool { return boosted[i].Score > boosted[j].Score })

	selected := boosted
	if focus == FocusRecon || focus == FocusReport {
		filtered := make([]Match, 0, len(boosted))
		for _, m := range boosted {
			if matchesFamily(m.Record, focus) {
				filtered = append(filtered, m)
			}
		}
		if len(filtered) > 0 {
			selected = filtered
		} else {
			r.log.Debug().Str("focus", string(focus)).Msg("focus filter matched nothing, keeping full candidate set")
		}
	}

	if len(selected) > r.topK {
		selected = selected[:r.topK]
	}

	out := make([]RetrievedContext, 0, len(selected))
	for _, m := range selected {
		source := m.Record.Metadata["source"]
		if source == "" {
			source = "unknown"
		}
		out = append(out, RetrievedContext{Source: source, Score: m.Score, Content: m.Record.Text})
	}
	return out, nil
}

// matchesFamily reports whether a record's source metadata or text carries
// the focus family's signal keywords.
func matchesFamily(record Record, focus Focus) bool {
	haystack := strings.ToLower(record.Metadata["source"] + " " + record.Text)
	switch focus {
	case FocusReport:
		return strings.Contains(haystack, "report") || strings.Contains(haystack, "template")
	case FocusRecon:
		return strings.Contains(haystack, "recon") || strings.Contains(haystack, "checklist")
	default:
		return false
	}
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
