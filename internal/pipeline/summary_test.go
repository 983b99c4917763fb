package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/rangecoach/internal/domain"
)

func TestSummaryEmpty(t *testing.T) {
	assert.Equal(t, "No events captured yet.", Summary(nil, 0))
}

func TestSummaryFormat(t *testing.T) {
	events := []domain.ActivityEvent{
		domain.NewEvent(domain.CommandPayload{Command: "nmap -sV 10.0.0.5"}),
		domain.NewEvent(domain.CommandPayload{Command: "nmap -p- 10.0.0.6"}),
		domain.NewEvent(domain.CommandPayload{Command: "gobuster dir -u http://10.0.0.5"}),
		domain.NewEvent(domain.HTTPPayload{Method: "GET", URL: "http://10.0.0.5/", StatusCode: 200}),
		domain.NewEvent(domain.HTTPPayload{Method: "GET", URL: "http://10.0.0.5/admin", StatusCode: 404}),
		domain.NewEvent(domain.HTTPPayload{Method: "GET", URL: "http://10.0.0.5/login", StatusCode: 200}),
		domain.NewNoteEvent("found login form", "user"),
	}

	got := Summary(events, 0)
	assert.Equal(t,
		"Events analyzed: 7. Top command tools: nmap:2, gobuster:1. "+
			"HTTP status mix: 200:2, 404:1. Recent notes: found login form.",
		got)
}

func TestSummaryWindowsRecentEvents(t *testing.T) {
	var events []domain.ActivityEvent
	for i := 0; i < 10; i++ {
		events = append(events, domain.NewEvent(domain.CommandPayload{Command: "old-tool run"}))
	}
	events = append(events, domain.NewEvent(domain.CommandPayload{Command: "new-tool run"}))

	got := Summary(events, 5)
	assert.Contains(t, got, "Events analyzed: 5.")
	assert.Contains(t, got, "new-tool:1")
	assert.NotContains(t, got, "new-tool:5")
}

func TestSummaryKeepsLastThreeNotes(t *testing.T) {
	events := []domain.ActivityEvent{
		domain.NewNoteEvent("one", "user"),
		domain.NewNoteEvent("two", "user"),
		domain.NewNoteEvent("three", "user"),
		domain.NewNoteEvent("four", "user"),
	}
	got := Summary(events, 0)
	assert.Contains(t, got, "Recent notes: two | three | four.")
	assert.NotContains(t, got, "one |")
}

func TestSummarySkipsBlankCommandsAndZeroStatuses(t *testing.T) {
	events := []domain.ActivityEvent{
		domain.NewEvent(domain.CommandPayload{Command: "   "}),
		domain.NewEvent(domain.HTTPPayload{Method: "GET", URL: "http://x/"}),
	}
	got := Summary(events, 0)
	assert.Contains(t, got, "Top command tools: none.")
	assert.Contains(t, got, "HTTP status mix: none.")
}
