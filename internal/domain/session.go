package domain

import (
	"encoding/json"
	"time"
)

// Session tracks one trainee's exercise run. It is the aggregate root: all
// ingest and suggest operations read or mutate exactly one session record.
type Session struct {
	SessionID     string          `json:"session_id"`
	TenantID      string          `json:"tenant_id"`
	UserID        string          `json:"user_id"`
	AgentID       string          `json:"agent_id"`
	Objective     string          `json:"objective"`
	TargetScope   []string        `json:"target_scope"`
	PolicyID      string          `json:"policy_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CurrentPhase  Phase           `json:"current_phase"`
	Events        []ActivityEvent `json:"events"`
	Notes         []string        `json:"notes"`
	LastReasoning string          `json:"last_reasoning,omitempty"`
	CachedSuggest *CachedSuggest  `json:"cached_suggest,omitempty"`
}

// CachedSuggest memoizes the last suggestion computed for a session. The
// cache is advisory: staleness is tolerated and a corrupt payload is simply
// a miss.
type CachedSuggest struct {
	Fingerprint string          `json:"fingerprint"`
	Payload     json.RawMessage `json:"payload"`
	CachedAt    time.Time       `json:"cached_at"`
}

// LatestNote returns the most recent raw note, or "" if none exist.
func (s *Session) LatestNote() string {
	if len(s.Notes) == 0 {
		return ""
	}
	return s.Notes[len(s.Notes)-1]
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	AgentID      string    `json:"agent_id"`
	CurrentPhase Phase     `json:"current_phase"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary returns the listing view of s.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		SessionID:    s.SessionID,
		TenantID:     s.TenantID,
		UserID:       s.UserID,
		AgentID:      s.AgentID,
		CurrentPhase: s.CurrentPhase,
		UpdatedAt:    s.UpdatedAt,
	}
}
