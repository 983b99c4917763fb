// Package advisor produces coaching actions for a session, either through
// an OpenAI-compatible chat model or a built-in heuristic playbook.
package advisor

import (
	"context"
	"strings"

	"github.com/soyeahso/rangecoach/internal/domain"
	"github.com/soyeahso/rangecoach/internal/rag"
)

// Context carries everything the generator needs about the session.
type Context struct {
	Objective        string
	Phase            domain.Phase
	EpisodeSummary   string
	MissingArtifacts []string
	Retrieved        []rag.RetrievedContext
	TargetScope      []string
	UserMessage      string
	MemoryMode       string
	Conversation     []string
}

// Client generates a reasoning string and up to four next actions.
type Client interface {
	GenerateActions(ctx context.Context, c Context) (string, []domain.ActionItem, error)
}

// heuristicReasoning is shared by the fallback generator and by the model
// path when the model returns no usable reasoning.
func heuristicReasoning(c Context) string {
	missing := "none"
	if len(c.MissingArtifacts) > 0 {
		missing = strings.Join(c.MissingArtifacts, ", ")
	}
	return "Phase inferred as " + string(c.Phase) + ". Missing artifacts: " + missing +
		". Actions focus on collecting evidence and moving safely to the next stage."
}
