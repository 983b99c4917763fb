package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an activity event.
type EventType string

const (
	EventCommand EventType = "command"
	EventHTTP    EventType = "http"
	EventScan    EventType = "scan"
	EventNote    EventType = "note"
	EventSystem  EventType = "system"
)

// Payload is the typed payload of an activity event. One variant exists per
// event type; each keeps an Extra bucket so fields from newer producers
// survive a round trip.
type Payload interface {
	Kind() EventType
}

// CommandPayload records a shell command run by the trainee.
type CommandPayload struct {
	Command  string         `json:"command,omitempty"`
	ExitCode *int           `json:"exit_code,omitempty"`
	Output   string         `json:"output,omitempty"`
	Extra    map[string]any `json:"-"`
}

func (CommandPayload) Kind() EventType { return EventCommand }

// HTTPPayload records an HTTP probe.
type HTTPPayload struct {
	Method     string         `json:"method,omitempty"`
	URL        string         `json:"url,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Extra      map[string]any `json:"-"`
}

func (HTTPPayload) Kind() EventType { return EventHTTP }

// ScanPayload records a scanner run and its summarized result.
type ScanPayload struct {
	Tool    string         `json:"tool,omitempty"`
	Target  string         `json:"target,omitempty"`
	Summary string         `json:"summary,omitempty"`
	Extra   map[string]any `json:"-"`
}

func (ScanPayload) Kind() EventType { return EventScan }

// NotePayload records a free-text trainee note. Notes double as an explicit
// override channel for phase classification.
type NotePayload struct {
	Message     string         `json:"message,omitempty"`
	Source      string         `json:"source,omitempty"`
	EvidenceRef string         `json:"evidence_ref,omitempty"`
	Hypothesis  string         `json:"hypothesis,omitempty"`
	Extra       map[string]any `json:"-"`
}

func (NotePayload) Kind() EventType { return EventNote }

// SystemPayload records an event emitted by the platform itself.
type SystemPayload struct {
	Message string         `json:"message,omitempty"`
	Extra   map[string]any `json:"-"`
}

func (SystemPayload) Kind() EventType { return EventSystem }

// ActivityEvent is an immutable activity record. It is created once by
// ingestion (or internally, when a note becomes an event) and never mutated.
type ActivityEvent struct {
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// NewEvent creates an event with a generated id and the current UTC time.
func NewEvent(p Payload) ActivityEvent {
	return ActivityEvent{
		EventID:   uuid.New().String(),
		EventType: p.Kind(),
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}
}

// NewNoteEvent creates a note event from a raw message.
func NewNoteEvent(message, source string) ActivityEvent {
	return NewEvent(NotePayload{Message: message, Source: source})
}

type eventWire struct {
	EventID   string         `json:"event_id"`
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// MarshalJSON flattens the typed payload variant and its Extra bucket into
// a single payload object.
func (e ActivityEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventWire{
		EventID:   e.EventID,
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Payload:   payloadToMap(e.Payload),
	})
}

// UnmarshalJSON dispatches the payload object to the variant matching
// event_type. Unknown payload keys land in the variant's Extra bucket.
func (e *ActivityEvent) UnmarshalJSON(data []byte) error {
	var wire eventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	payload, err := payloadFromMap(wire.EventType, wire.Payload)
	if err != nil {
		return err
	}
	e.EventID = wire.EventID
	e.EventType = wire.EventType
	e.Timestamp = wire.Timestamp
	e.Payload = payload
	return nil
}

func payloadToMap(p Payload) map[string]any {
	out := map[string]any{}
	var extra map[string]any

	switch v := p.(type) {
	case CommandPayload:
		putString(out, "command", v.Command)
		if v.ExitCode != nil {
			out["exit_code"] = *v.ExitCode
		}
		putString(out, "output", v.Output)
		extra = v.Extra
	case HTTPPayload:
		putString(out, "method", v.Method)
		putString(out, "url", v.URL)
		if v.StatusCode != 0 {
			out["status_code"] = v.StatusCode
		}
		extra = v.Extra
	case ScanPayload:
		putString(out, "tool", v.Tool)
		putString(out, "target", v.Target)
		putString(out, "summary", v.Summary)
		extra = v.Extra
	case NotePayload:
		putString(out, "message", v.Message)
		putString(out, "source", v.Source)
		putString(out, "evidence_ref", v.EvidenceRef)
		putString(out, "hypothesis", v.Hypothesis)
		extra = v.Extra
	case SystemPayload:
		putString(out, "message", v.Message)
		extra = v.Extra
	case nil:
		return out
	}

	for k, val := range extra {
		if _, taken := out[k]; !taken {
			out[k] = val
		}
	}
	return out
}

func payloadFromMap(t EventType, m map[string]any) (Payload, error) {
	if m == nil {
		m = map[string]any{}
	}
	rest := func(known ...string) map[string]any {
		extra := map[string]any{}
		for k, v := range m {
			extra[k] = v
		}
		for _, k := range known {
			delete(extra, k)
		}
		if len(extra) == 0 {
			return nil
		}
		return extra
	}

	switch t {
	case EventCommand:
		p := CommandPayload{
			Command: asString(m["command"]),
			Output:  asString(m["output"]),
			Extra:   rest("command", "exit_code", "output"),
		}
		if code, ok := asInt(m["exit_code"]); ok {
			p.ExitCode = &code
		}
		return p, nil
	case EventHTTP:
		p := HTTPPayload{
			Method: asString(m["method"]),
			URL:    asString(m["url"]),
			Extra:  rest("method", "url", "status_code"),
		}
		if code, ok := asInt(m["status_code"]); ok {
			p.StatusCode = code
		}
		return p, nil
	case EventScan:
		return ScanPayload{
			Tool:    asString(m["tool"]),
			Target:  asString(m["target"]),
			Summary: asString(m["summary"]),
			Extra:   rest("tool", "target", "summary"),
		}, nil
	case EventNote:
		return NotePayload{
			Message:     asString(m["message"]),
			Source:      asString(m["source"]),
			EvidenceRef: asString(m["evidence_ref"]),
			Hypothesis:  asString(m["hypothesis"]),
			Extra:       rest("message", "source", "evidence_ref", "hypothesis"),
		}, nil
	case EventSystem:
		return SystemPayload{
			Message: asString(m["message"]),
			Extra:   rest("message"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
