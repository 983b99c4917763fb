package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/soyeahso/rangecoach/internal/advisor"
	"github.com/soyeahso/rangecoach/internal/domain"
	"github.com/soyeahso/rangecoach/internal/logging"
	"github.com/soyeahso/rangecoach/internal/phase"
	"github.com/soyeahso/rangecoach/internal/policy"
	"github.com/soyeahso/rangecoach/internal/rag"
	"github.com/soyeahso/rangecoach/internal/store"
)

// Orchestrator runs the suggestion pipeline. It is stateless between runs;
// its only side effect is persisting phase, reasoning, and the suggestion
// cache back into the session record.
type Orchestrator struct {
	sessions  *store.SessionStore
	retriever *rag.Retriever
	advisor   advisor.Client
	guard     *policy.Guard
	log       *logging.Logger
}

// NewOrchestrator wires the pipeline collaborators.
func NewOrchestrator(sessions *store.SessionStore, retriever *rag.Retriever, client advisor.Client, guard *policy.Guard, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		retriever: retriever,
		advisor:   client,
		guard:     guard,
		log:       log.Sub("pipeline"),
	}
}

// Suggest runs one pipeline pass for the session. An unchanged session
// state with unchanged request parameters returns the memoized response
// without touching retrieval, classification, or the advisor.
func (o *Orchestrator) Suggest(ctx context.Context, sessionID string, req SuggestRequest) (*SuggestResponse, error) {
	req = req.normalize()

	var sess *domain.Session
	var err error
	if strings.TrimSpace(req.UserMessage) != "" {
		sess, err = o.sessions.Update(sessionID, func(cur *domain.Session) error {
			cur.Notes = append(cur.Notes, req.UserMessage)
			cur.Events = append(cur.Events, domain.NewNoteEvent(req.UserMessage, "user"))
			return nil
		})
	} else {
		sess, err = o.sessions.Get(sessionID)
	}
	if err != nil {
		return nil, err
	}

	indexVersion := o.retriever.IndexVersion()
	fingerprint, err := Fingerprint(sess, req, indexVersion)
	if err != nil {
		return nil, err
	}
	if cached := o.cachedResponse(sess, fingerprint); cached != nil {
		o.log.Debug().Str("session", sessionID).Msg("suggestion served from cache")
		return cached, nil
	}

	episodeSummary := Summary(sess.Events, 0)

	detected, confidence := phase.Detect(sess.Events, sess.CurrentPhase)
	effectivePhase := detected
	if req.PhaseOverride != "" {
		effectivePhase = req.PhaseOverride
		confidence = 1.0
	}
	missing := phase.MissingArtifacts(sess.Events, effectivePhase)

	retrieved, err := o.retriever.Query(ctx, retrievalQuery(sess, effectivePhase, episodeSummary), req.Focus)
	if err != nil {
		o.log.Warn().Err(err).Msg("retrieval failed, continuing without context")
		retrieved = nil
	}

	advisorCtx := advisor.Context{
		Objective:        sess.Objective,
		Phase:            effectivePhase,
		EpisodeSummary:   episodeSummary,
		MissingArtifacts: missing,
		Retrieved:        retrieved,
		TargetScope:      sess.TargetScope,
		UserMessage:      req.UserMessage,
		MemoryMode:       string(req.MemoryMode),
		Conversation:     conversationWindow(sess.Events, req),
	}
	reasoning, actions, err := o.advisor.GenerateActions(ctx, advisorCtx)
	if err != nil || len(actions) == 0 {
		if err != nil {
			o.log.Warn().Err(err).Msg("advisor failed, using playbook")
		}
		reasoning, actions, _ = advisor.NewHeuristic().GenerateActions(ctx, advisorCtx)
	}

	actions = o.guard.Sanitize(actions, sess.TargetScope)

	resp := &SuggestResponse{
		SessionID:        sess.SessionID,
		Phase:            effectivePhase,
		PhaseConfidence:  confidence,
		MissingArtifacts: missing,
		Reasoning:        reasoning,
		Actions:          actions,
		RetrievedContext: retrieved,
		EpisodeSummary:   episodeSummary,
	}

	// The stored fingerprint must describe the record as persisted. When
	// detection moves the phase, writing current_phase back would otherwise
	// invalidate this run's own cache entry, and the next unchanged request
	// would reach the advisor again.
	storedPhase := sess.CurrentPhase
	if req.PhaseOverride == "" || req.PersistOverride {
		storedPhase = resp.Phase
	}
	persisted := *sess
	persisted.CurrentPhase = storedPhase
	storedFingerprint, err := Fingerprint(&persisted, req, indexVersion)
	if err != nil {
		return nil, err
	}

	if err := o.persist(sessionID, req, resp, storedFingerprint); err != nil {
		return nil, err
	}
	return resp, nil
}

// cachedResponse returns the memoized response if the fingerprint matches.
// Any decode failure reads as a miss.
func (o *Orchestrator) cachedResponse(sess *domain.Session, fingerprint string) *SuggestResponse {
	cached := sess.CachedSuggest
	if cached == nil || cached.Fingerprint != fingerprint {
		return nil
	}
	var resp SuggestResponse
	if err := json.Unmarshal(cached.Payload, &resp); err != nil {
		o.log.Debug().Str("session", sess.SessionID).Err(err).Msg("corrupt cached suggestion treated as miss")
		return nil
	}
	return &resp
}

// persist writes phase, reasoning, and the memoized payload back through
// Update so events appended by concurrent requests survive.
func (o *Orchestrator) persist(sessionID string, req SuggestRequest, resp *SuggestResponse, fingerprint string) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = o.sessions.Update(sessionID, func(cur *domain.Session) error {
		if req.PhaseOverride == "" || req.PersistOverride {
			cur.CurrentPhase = resp.Phase
		}
		cur.LastReasoning = resp.Reasoning
		cur.CachedSuggest = &domain.CachedSuggest{
			Fingerprint: fingerprint,
			Payload:     payload,
			CachedAt:    time.Now().UTC(),
		}
		return nil
	})
	return err
}

// retrievalQuery assembles the retriever query from the session's live
// state.
func retrievalQuery(sess *domain.Session, p domain.Phase, episodeSummary string) string {
	return "objective: " + sess.Objective + "\n" +
		"phase: " + string(p) + "\n" +
		"latest_note: " + sess.LatestNote() + "\n" +
		"episode_summary: " + episodeSummary
}

// conversationWindow renders the event slice the advisor sees, bounded by
// the requested memory mode.
func conversationWindow(events []domain.ActivityEvent, req SuggestRequest) []string {
	switch req.MemoryMode {
	case MemorySummary:
		return nil
	case MemoryWindow:
		if len(events) > req.HistoryWindow {
			events = events[len(events)-req.HistoryWindow:]
		}
	}

	out := make([]string, 0, len(events))
	for _, event := range events {
		out = append(out, renderEvent(event))
	}
	return out
}

func renderEvent(event domain.ActivityEvent) string {
	prefix := string(event.EventType) + ": "
	switch payload := event.Payload.(type) {
	case domain.CommandPayload:
		return prefix + payload.Command
	case domain.HTTPPayload:
		return prefix + payload.Method + " " + payload.URL
	case domain.ScanPayload:
		return prefix + strings.TrimSpace(payload.Tool+" "+payload.Target)
	case domain.NotePayload:
		return prefix + payload.Message
	case domain.SystemPayload:
		return prefix + payload.Message
	default:
		return strings.TrimSuffix(prefix, ": ")
	}
}
