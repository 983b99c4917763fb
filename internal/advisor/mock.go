package advisor

import (
	"context"

	"github.com/soyeahso/rangecoach/internal/domain"
)

// Mock is a test double for Client. When GenerateFunc is nil it behaves
// like the heuristic playbook while still counting calls.
type Mock struct {
	GenerateFunc func(ctx context.Context, c Context) (string, []domain.ActionItem, error)
	Calls        int
}

func (m *Mock) GenerateActions(ctx context.Context, c Context) (string, []domain.ActionItem, error) {
	m.Calls++
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, c)
	}
	return NewHeuristic().GenerateActions(ctx, c)
}
