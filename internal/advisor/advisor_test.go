package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/rangecoach/internal/domain"
)

func TestHeuristicCoversEveryPhase(t *testing.T) {
	h := NewHeuristic()
	for _, phase := range domain.Phases {
		reasoning, actions, err := h.GenerateActions(context.Background(), Context{Phase: phase})
		require.NoError(t, err)
		assert.Contains(t, reasoning, string(phase))
		require.Len(t, actions, 2, "phase %s", phase)
		for _, action := range actions {
			assert.NotEmpty(t, action.Title)
			assert.NotEmpty(t, action.Rationale)
			assert.NotEmpty(t, action.DoneCriteria)
		}
	}
}

func TestHeuristicReasoningListsMissingArtifacts(t *testing.T) {
	reasoning, _, err := NewHeuristic().GenerateActions(context.Background(), Context{
		Phase:            domain.PhaseRecon,
		MissingArtifacts: []string{"service inventory", "open ports"},
	})
	require.NoError(t, err)
	assert.Contains(t, reasoning, "service inventory, open ports")

	reasoning, _, err = NewHeuristic().GenerateActions(context.Background(), Context{Phase: domain.PhaseReport})
	require.NoError(t, err)
	assert.Contains(t, reasoning, "Missing artifacts: none")
}

func TestHeuristicReconCommandUsesPlaceholder(t *testing.T) {
	_, actions, err := NewHeuristic().GenerateActions(context.Background(), Context{Phase: domain.PhaseRecon})
	require.NoError(t, err)
	require.NotNil(t, actions[0].Command)
	assert.Contains(t, *actions[0].Command, "<TARGET_IN_SCOPE>")
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"reasoning":"x"}`, `{"reasoning":"x"}`},
		{"padded object", "  {\"a\":1}  ", `{"a":1}`},
		{"fenced", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced with language", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around fence", "Here you go:\n```json\n{\"a\":1}\n```\nDone.", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

func TestMockCountsCalls(t *testing.T) {
	m := &Mock{}
	_, actions, err := m.GenerateActions(context.Background(), Context{Phase: domain.PhaseRecon})
	require.NoError(t, err)
	assert.Len(t, actions, 2)
	assert.Equal(t, 1, m.Calls)

	m.GenerateFunc = func(context.Context, Context) (string, []domain.ActionItem, error) {
		return "custom", nil, nil
	}
	reasoning, _, err := m.GenerateActions(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, "custom", reasoning)
	assert.Equal(t, 2, m.Calls)
}
