package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent(CommandPayload{Command: "nmap -sV 10.0.0.1"})
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, EventCommand, ev.EventType)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestEventJSONRoundTrip(t *testing.T) {
	code := 1
	ev := NewEvent(CommandPayload{
		Command:  "gobuster dir -u http://lab.local",
		ExitCode: &code,
		Output:   "found /admin",
	})

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var got ActivityEvent
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, EventCommand, got.EventType)
	payload, ok := got.Payload.(CommandPayload)
	require.True(t, ok)
	assert.Equal(t, "gobuster dir -u http://lab.local", payload.Command)
	require.NotNil(t, payload.ExitCode)
	assert.Equal(t, 1, *payload.ExitCode)
	assert.Equal(t, "found /admin", payload.Output)
}

func TestEventUnknownPayloadFieldsSurvive(t *testing.T) {
	raw := `{
		"event_id": "e-1",
		"event_type": "note",
		"timestamp": "2026-08-01T12:00:00Z",
		"payload": {"message": "saw odd header", "operator": "blue-2", "weight": 3}
	}`

	var ev ActivityEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	note, ok := ev.Payload.(NotePayload)
	require.True(t, ok)
	assert.Equal(t, "saw odd header", note.Message)
	assert.Equal(t, "blue-2", note.Extra["operator"])

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operator":"blue-2"`)
	assert.Contains(t, string(data), `"weight":3`)
}

func TestEventUnmarshalRejectsUnknownType(t *testing.T) {
	raw := `{"event_id":"e-1","event_type":"telepathy","timestamp":"2026-08-01T12:00:00Z","payload":{}}`
	var ev ActivityEvent
	assert.Error(t, json.Unmarshal([]byte(raw), &ev))
}

func TestHTTPPayloadStatusCode(t *testing.T) {
	raw := `{"event_id":"e-2","event_type":"http","timestamp":"2026-08-01T12:00:00Z",
		"payload":{"method":"GET","url":"http://10.0.0.5/admin","status_code":403}}`

	var ev ActivityEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	p, ok := ev.Payload.(HTTPPayload)
	require.True(t, ok)
	assert.Equal(t, 403, p.StatusCode)
	assert.Equal(t, "GET", p.Method)
}

func TestPhaseIsValid(t *testing.T) {
	for _, p := range Phases {
		assert.True(t, p.IsValid())
	}
	assert.False(t, Phase("loitering").IsValid())
}

func TestPhasesOrder(t *testing.T) {
	// Tie-break logic depends on this exact order.
	want := []Phase{PhaseRecon, PhaseEnumeration, PhaseHypothesis, PhaseAttempt, PhasePostCheck, PhaseReport}
	assert.Equal(t, want, Phases)
}

func TestSessionLatestNote(t *testing.T) {
	s := &Session{}
	assert.Equal(t, "", s.LatestNote())

	s.Notes = []string{"first", "second"}
	assert.Equal(t, "second", s.LatestNote())
}

func TestSessionSummary(t *testing.T) {
	now := time.Now().UTC()
	s := &Session{
		SessionID:    "agent-1234abcd",
		TenantID:     "acme",
		UserID:       "u1",
		AgentID:      "kali-01",
		CurrentPhase: PhaseRecon,
		UpdatedAt:    now,
	}
	sum := s.Summary()
	assert.Equal(t, "agent-1234abcd", sum.SessionID)
	assert.Equal(t, PhaseRecon, sum.CurrentPhase)
	assert.Equal(t, now, sum.UpdatedAt)
}
