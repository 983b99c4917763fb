// Package store provides the durable session record store and the sqlite
// key-value cache.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/rangecoach/internal/domain"
	"github.com/soyeahso/rangecoach/internal/logging"
)

var (
	// ErrNotFound marks an unknown session id.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidSessionID marks an id that failed validation before any
	// storage access.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Session ids become file names, so they are restricted to a safe pattern
// before any path is formed. This is a hard boundary against traversal.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateSessionID rejects any externally supplied id that could not have
// been generated by this store.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// StartRequest carries the fields needed to open a session.
type StartRequest struct {
	TenantID    string   `json:"tenant_id"`
	UserID      string   `json:"user_id"`
	AgentID     string   `json:"agent_id"`
	Objective   string   `json:"objective"`
	TargetScope []string `json:"target_scope"`
	PolicyID    string   `json:"policy_id"`
}

// SessionStore persists one JSON record per session. Mutations go through
// Update, which holds an exclusive per-session advisory file lock for the
// whole read-modify-write, so concurrent updates to the same session
// serialize while different sessions never contend.
type SessionStore struct {
	dir         string
	maxEvents   int
	lockTimeout time.Duration
	log         *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSessionStore creates the store directory if needed. maxEvents <= 0
// defaults to 600; lockTimeout <= 0 defaults to 10s.
func NewSessionStore(dir string, maxEvents int, lockTimeout time.Duration, log *logging.Logger) (*SessionStore, error) {
	if maxEvents <= 0 {
		maxEvents = 600
	}
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &SessionStore{
		dir:         dir,
		maxEvents:   maxEvents,
		lockTimeout: lockTimeout,
		log:         log.Sub("sessions"),
		locks:       map[string]*sync.Mutex{},
	}, nil
}

// MaxEvents returns the configured event history cap.
func (s *SessionStore) MaxEvents() int { return s.maxEvents }

// Create opens a new session with a generated id and persists it.
func (s *SessionStore) Create(req StartRequest) (*domain.Session, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:    generateSessionID(req.AgentID),
		TenantID:     req.TenantID,
		UserID:       req.UserID,
		AgentID:      req.AgentID,
		Objective:    req.Objective,
		TargetScope:  req.TargetScope,
		PolicyID:     req.PolicyID,
		CreatedAt:    now,
		UpdatedAt:    now,
		CurrentPhase: domain.PhaseRecon,
		Events:       []domain.ActivityEvent{},
		Notes:        []string{},
	}
	if sess.Objective == "" {
		sess.Objective = "Complete the lab objective safely within allowed scope."
	}
	if sess.PolicyID == "" {
		sess.PolicyID = "lab-default"
	}
	if sess.TargetScope == nil {
		sess.TargetScope = []string{}
	}

	if err := s.write(sess); err != nil {
		return nil, err
	}
	s.log.Info().Str("session", sess.SessionID).Str("tenant", sess.TenantID).Msg("session created")
	return sess, nil
}

// Get reads a session record. An unreadable record surfaces as not-found:
// whole-record integrity cannot be assumed for a corrupt file.
func (s *SessionStore) Get(id string) (*domain.Session, error) {
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}
	return s.read(id)
}

// Update applies mutate to the session under its exclusive lock, re-caps
// the event history, bumps updated_at, and atomically writes the record
// back. The lock is released on every exit path.
func (s *SessionStore) Update(id string, mutate func(*domain.Session) error) (*domain.Session, error) {
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}

	local := s.localLock(id)
	local.Lock()
	defer local.Unlock()

	flock, err := acquireFileLock(s.lockPath(id), s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer flock.release()

	sess, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if err := mutate(sess); err != nil {
		return nil, err
	}

	if len(sess.Events) > s.maxEvents {
		sess.Events = sess.Events[len(sess.Events)-s.maxEvents:]
	}
	if err := s.write(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// List returns session summaries sorted by updated_at descending,
// optionally filtered by tenant and user, truncated to limit (limit <= 0
// means no cap). Individually corrupt records are skipped, not fatal.
func (s *SessionStore) List(tenantID, userID string, limit int) ([]domain.SessionSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	var out []domain.SessionSummary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		sess, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.log.Warn().Str("file", name).Err(err).Msg("skipping unreadable session record")
			continue
		}
		if tenantID != "" && sess.TenantID != tenantID {
			continue
		}
		if userID != "" && sess.UserID != userID {
			continue
		}
		out = append(out, sess.Summary())
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a session record and its lock artifact. Deleting an
// unknown session returns ErrNotFound without touching anything. The
// advisory flock is held for the removal so an in-flight cross-process
// Update cannot republish the record after it was deleted.
func (s *SessionStore) Delete(id string) error {
	if err := ValidateSessionID(id); err != nil {
		return err
	}

	local := s.localLock(id)
	local.Lock()
	defer local.Unlock()

	flock, err := acquireFileLock(s.lockPath(id), s.lockTimeout)
	if err != nil {
		return err
	}
	defer flock.release()

	if err := os.Remove(s.sessionPath(id)); err != nil {
		// Acquiring the flock may have created the lock artifact; a
		// waiter re-creates it on demand, so it goes either way.
		_ = os.Remove(s.lockPath(id))
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}
	_ = os.Remove(s.lockPath(id))

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()

	s.log.Info().Str("session", id).Msg("session deleted")
	return nil
}

func (s *SessionStore) read(id string) (*domain.Session, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: corrupt record: %v", ErrNotFound, err)
	}
	return &sess, nil
}

// write bumps updated_at (kept monotone even under clock skew) and
// publishes the record atomically via temp file + rename.
func (s *SessionStore) write(sess *domain.Session) error {
	now := time.Now().UTC()
	if now.After(sess.UpdatedAt) {
		sess.UpdatedAt = now
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+sess.SessionID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.sessionPath(sess.SessionID)); err != nil {
		return fmt.Errorf("publish session record: %w", err)
	}
	return nil
}

func (s *SessionStore) localLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.locks[id]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.locks[id] = m
	return m
}

func (s *SessionStore) sessionPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *SessionStore) lockPath(id string) string {
	return filepath.Join(s.dir, id+".lock")
}

// generateSessionID derives an opaque token from the agent id plus random
// hex, restricted to the safe-identifier alphabet.
func generateSessionID(agentID string) string {
	prefix := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, agentID)
	if prefix == "" {
		prefix = "sess"
	}
	if len(prefix) > 24 {
		prefix = prefix[:24]
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:10]
	return prefix + "-" + suffix
}
