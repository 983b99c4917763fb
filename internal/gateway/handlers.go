package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/soyeahso/rangecoach/internal/domain"
	"github.com/soyeahso/rangecoach/internal/pipeline"
	"github.com/soyeahso/rangecoach/internal/store"
)

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /v1/sessions/{id}/events", s.handleIngestEvents)
	mux.HandleFunc("POST /v1/sessions/{id}/notes", s.handleAppendNote)
	mux.HandleFunc("POST /v1/sessions/{id}/suggest", s.handleSuggest)
	mux.HandleFunc("GET /v1/sessions/{id}/ws", s.handleEventFeed)

	mux.HandleFunc("POST /v1/index/rebuild", s.handleIndexRebuild)
	mux.HandleFunc("GET /v1/index/status", s.handleIndexStatus)

	mux.HandleFunc("/", handleNotFound)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps store errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrInvalidSessionID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrLockTimeout):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.Version(),
	}
	if !s.startedAt.IsZero() {
		body["uptime"] = time.Since(s.startedAt).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req store.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.TenantID == "" || req.UserID == "" || req.AgentID == "" {
		badRequest(w, "tenant_id, user_id and agent_id are required")
		return
	}

	sess, err := s.sessions.Create(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	summaries, err := s.sessions.List(query.Get("tenant_id"), query.Get("user_id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []domain.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type ingestRequest struct {
	Events []domain.ActivityEvent `json:"events"`
}

func (s *Server) handleIngestEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if len(req.Events) == 0 {
		badRequest(w, "events must not be empty")
		return
	}
	now := time.Now().UTC()
	for i := range req.Events {
		if req.Events[i].EventID == "" {
			req.Events[i].EventID = domain.NewEvent(req.Events[i].Payload).EventID
		}
		if req.Events[i].Timestamp.IsZero() {
			req.Events[i].Timestamp = now
		}
	}

	sess, err := s.sessions.Update(id, func(cur *domain.Session) error {
		cur.Events = append(cur.Events, req.Events...)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.hub.Broadcast(id, req.Events)
	writeJSON(w, http.StatusOK, sess)
}

type noteRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleAppendNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		badRequest(w, "message is required")
		return
	}

	note := domain.NewNoteEvent(req.Message, "user")
	sess, err := s.sessions.Update(id, func(cur *domain.Session) error {
		cur.Notes = append(cur.Notes, req.Message)
		cur.Events = append(cur.Events, note)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.hub.Broadcast(id, []domain.ActivityEvent{note})
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req pipeline.SuggestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body: "+err.Error())
			return
		}
	}

	resp, err := s.orch.Suggest(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEventFeed(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.sessions.Get(id); err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	unsubscribe := s.hub.Subscribe(id, conn)
	defer unsubscribe()

	s.log.Debug().Str("session", id).Str("remote", r.RemoteAddr).Msg("event feed subscriber connected")

	// Reads are discarded; the feed is one-directional. The loop exits
	// when the client disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleIndexRebuild(w http.ResponseWriter, r *http.Request) {
	count, err := s.indexer.Rebuild(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.noteIndexed(count)
	writeJSON(w, http.StatusOK, map[string]any{
		"indexed_chunks": count,
		"index_version":  s.index.Version(),
	})
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	records, err := s.index.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	lastIndexed, lastChunks := s.indexStatus()

	status := map[string]any{
		"records":       len(records),
		"index_version": s.index.Version(),
	}
	if !lastIndexed.IsZero() {
		status["last_rebuild"] = lastIndexed
		status["last_rebuild_chunks"] = lastChunks
	}
	writeJSON(w, http.StatusOK, status)
}
