package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/rangecoach/internal/domain"
	"github.com/soyeahso/rangecoach/internal/rag"
)

func fingerprintSession() *domain.Session {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Session{
		SessionID:    "agent-0123456789",
		TenantID:     "acme",
		UserID:       "u1",
		AgentID:      "agent",
		Objective:    "enumerate the web tier",
		TargetScope:  []string{"10.0.0.5", "lab.example.com"},
		PolicyID:     "lab-default",
		CurrentPhase: domain.PhaseRecon,
		Events: []domain.ActivityEvent{
			{
				EventID:   "e1",
				EventType: domain.EventCommand,
				Timestamp: ts,
				Payload:   domain.CommandPayload{Command: "nmap -sV 10.0.0.5"},
			},
		},
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a, err := Fingerprint(fingerprintSession(), SuggestRequest{}, "100:200")
	require.NoError(t, err)
	b, err := Fingerprint(fingerprintSession(), SuggestRequest{}, "100:200")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintScopeOrderInsensitive(t *testing.T) {
	sess := fingerprintSession()
	a, err := Fingerprint(sess, SuggestRequest{}, "v")
	require.NoError(t, err)

	sess.TargetScope = []string{"lab.example.com", "10.0.0.5"}
	b, err := Fingerprint(sess, SuggestRequest{}, "v")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFingerprintFieldSensitivity(t *testing.T) {
	base, err := Fingerprint(fingerprintSession(), SuggestRequest{}, "v")
	require.NoError(t, err)

	mutations := map[string]func(*domain.Session, *SuggestRequest, *string){
		"new event": func(s *domain.Session, _ *SuggestRequest, _ *string) {
			s.Events = append(s.Events, domain.ActivityEvent{
				EventID:   "e2",
				EventType: domain.EventNote,
				Timestamp: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
				Payload:   domain.NotePayload{Message: "x"},
			})
		},
		"objective": func(s *domain.Session, _ *SuggestRequest, _ *string) { s.Objective = "other" },
		"phase":     func(s *domain.Session, _ *SuggestRequest, _ *string) { s.CurrentPhase = domain.PhaseReport },
		"policy":    func(s *domain.Session, _ *SuggestRequest, _ *string) { s.PolicyID = "strict" },
		"focus": func(_ *domain.Session, r *SuggestRequest, _ *string) { r.Focus = rag.FocusReport },
		"memory mode": func(_ *domain.Session, r *SuggestRequest, _ *string) { r.MemoryMode = MemoryFull },
		"history window": func(_ *domain.Session, r *SuggestRequest, _ *string) { r.HistoryWindow = 40 },
		"phase override": func(_ *domain.Session, r *SuggestRequest, _ *string) { r.PhaseOverride = domain.PhaseAttempt },
		"index version":  func(_ *domain.Session, _ *SuggestRequest, v *string) { *v = "101:200" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			sess := fingerprintSession()
			req := SuggestRequest{}
			version := "v"
			mutate(sess, &req, &version)

			got, err := Fingerprint(sess, req, version)
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}

func TestFingerprintUsesTrailingEventsOnly(t *testing.T) {
	sess := fingerprintSession()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess.Events = nil
	for i := 0; i < fingerprintEvents+10; i++ {
		sess.Events = append(sess.Events, domain.ActivityEvent{
			EventID:   "e",
			EventType: domain.EventCommand,
			Timestamp: ts,
			Payload:   domain.CommandPayload{Command: "run"},
		})
	}
	a, err := Fingerprint(sess, SuggestRequest{}, "v")
	require.NoError(t, err)

	// Dropping an event outside the trailing window changes nothing.
	sess.Events = sess.Events[1:]
	b, err := Fingerprint(sess, SuggestRequest{}, "v")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalizeDefaults(t *testing.T) {
	req := SuggestRequest{}.normalize()
	assert.Equal(t, MemoryWindow, req.MemoryMode)
	assert.Equal(t, defaultHistoryWindow, req.HistoryWindow)
	assert.Equal(t, rag.FocusAuto, req.Focus)

	req = SuggestRequest{MemoryMode: "bogus", HistoryWindow: 9999, Focus: "bogus", PhaseOverride: "bogus"}.normalize()
	assert.Equal(t, MemoryWindow, req.MemoryMode)
	assert.Equal(t, maxHistoryWindow, req.HistoryWindow)
	assert.Equal(t, rag.FocusAuto, req.Focus)
	assert.Empty(t, string(req.PhaseOverride))
}
