package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/soyeahso/rangecoach/internal/domain"
	"github.com/soyeahso/rangecoach/internal/rag"
)

// MemoryMode selects how much raw history reaches the advisor.
type MemoryMode string

const (
	MemorySummary MemoryMode = "summary"
	MemoryWindow  MemoryMode = "window"
	MemoryFull    MemoryMode = "full"
)

const (
	defaultHistoryWindow = 12
	maxHistoryWindow     = 120

	// fingerprintEvents bounds how much trailing history feeds the
	// fingerprint. Must stay below the store's event cap so recapping
	// old history cannot flip the fingerprint on its own.
	fingerprintEvents = 50
)

// SuggestRequest carries the tunable parameters of one suggestion run.
type SuggestRequest struct {
	UserMessage     string       `json:"user_message,omitempty"`
	MemoryMode      MemoryMode   `json:"memory_mode,omitempty"`
	HistoryWindow   int          `json:"history_window,omitempty"`
	PhaseOverride   domain.Phase `json:"phase_override,omitempty"`
	PersistOverride bool         `json:"persist_override,omitempty"`
	Focus           rag.Focus    `json:"focus,omitempty"`
}

// normalize fills defaults and clamps out-of-range parameters.
func (r SuggestRequest) normalize() SuggestRequest {
	switch r.MemoryMode {
	case MemorySummary, MemoryWindow, MemoryFull:
	default:
		r.MemoryMode = MemoryWindow
	}
	if r.HistoryWindow <= 0 {
		r.HistoryWindow = defaultHistoryWindow
	}
	if r.HistoryWindow > maxHistoryWindow {
		r.HistoryWindow = maxHistoryWindow
	}
	if !r.Focus.IsValid() {
		r.Focus = rag.FocusAuto
	}
	if r.PhaseOverride != "" && !r.PhaseOverride.IsValid() {
		r.PhaseOverride = ""
	}
	return r
}

// SuggestResponse is the unit returned to the caller and memoized in the
// session record.
type SuggestResponse struct {
	SessionID        string                 `json:"session_id"`
	Phase            domain.Phase           `json:"phase"`
	PhaseConfidence  float64                `json:"phase_confidence"`
	MissingArtifacts []string               `json:"missing_artifacts"`
	Reasoning        string                 `json:"reasoning"`
	Actions          []domain.ActionItem    `json:"actions"`
	RetrievedContext []rag.RetrievedContext `json:"retrieved_context"`
	EpisodeSummary   string                 `json:"episode_summary"`
}

// fingerprintInput is the canonical serialization source. Field order is
// fixed by the struct; map-valued payloads serialize with sorted keys, so
// identical state always yields identical bytes.
type fingerprintInput struct {
	SessionID       string                 `json:"session_id"`
	Objective       string                 `json:"objective"`
	TargetScope     []string               `json:"target_scope"`
	PolicyID        string                 `json:"policy_id"`
	CurrentPhase    domain.Phase           `json:"current_phase"`
	Events          []domain.ActivityEvent `json:"events"`
	MemoryMode      MemoryMode             `json:"memory_mode"`
	HistoryWindow   int                    `json:"history_window"`
	PhaseOverride   domain.Phase           `json:"phase_override"`
	PersistOverride bool                   `json:"persist_override"`
	Focus           rag.Focus              `json:"focus"`
	IndexVersion    string                 `json:"index_version"`
}

// Fingerprint hashes the suggestion-relevant session state plus the
// effective request parameters and index version. Any single-field change
// produces a different digest.
func Fingerprint(sess *domain.Session, req SuggestRequest, indexVersion string) (string, error) {
	req = req.normalize()

	scope := append([]string(nil), sess.TargetScope...)
	sort.Strings(scope)

	events := sess.Events
	if len(events) > fingerprintEvents {
		events = events[len(events)-fingerprintEvents:]
	}

	input := fingerprintInput{
		SessionID:       sess.SessionID,
		Objective:       sess.Objective,
		TargetScope:     scope,
		PolicyID:        sess.PolicyID,
		CurrentPhase:    sess.CurrentPhase,
		Events:          events,
		MemoryMode:      req.MemoryMode,
		HistoryWindow:   req.HistoryWindow,
		PhaseOverride:   req.PhaseOverride,
		PersistOverride: req.PersistOverride,
		Focus:           req.Focus,
		IndexVersion:    indexVersion,
	}
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("serialize fingerprint input: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
