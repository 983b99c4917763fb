// Package pipeline sequences one suggestion run: summarize, classify,
// retrieve, generate, sanitize, persist.
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soyeahso/rangecoach/internal/domain"
)

// summaryWindow bounds how much history the episode summary digests.
const summaryWindow = 30

// Summary condenses the trailing events into one line of telemetry: tool
// usage counts, HTTP status-code mix, and the latest notes. maxEvents <= 0
// selects the default window.
func Summary(events []domain.ActivityEvent, maxEvents int) string {
	if len(events) == 0 {
		return "No events captured yet."
	}
	if maxEvents <= 0 {
		maxEvents = summaryWindow
	}
	recent := events
	if len(recent) > maxEvents {
		recent = recent[len(recent)-maxEvents:]
	}

	toolCounts := map[string]int{}
	statusCounts := map[int]int{}
	var notes []string

	for _, event := range recent {
		switch payload := event.Payload.(type) {
		case domain.CommandPayload:
			command := strings.TrimSpace(payload.Command)
			if command != "" {
				tool := strings.ToLower(strings.Fields(command)[0])
				toolCounts[tool]++
			}
		case domain.HTTPPayload:
			if payload.StatusCode != 0 {
				statusCounts[payload.StatusCode]++
			}
		case domain.NotePayload:
			if message := strings.TrimSpace(payload.Message); message != "" {
				notes = append(notes, message)
			}
		}
	}

	return fmt.Sprintf(
		"Events analyzed: %d. Top command tools: %s. HTTP status mix: %s. Recent notes: %s.",
		len(recent), topTools(toolCounts, 5), statusMix(statusCounts), latestNotes(notes, 3),
	)
}

// topTools formats the n most used tools as "tool:count", most used first,
// ties broken alphabetically so the summary is deterministic.
func topTools(counts map[string]int, n int) string {
	if len(counts) == 0 {
		return "none"
	}
	tools := make([]string, 0, len(counts))
	for tool := range counts {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		if counts[tools[i]] != counts[tools[j]] {
			return counts[tools[i]] > counts[tools[j]]
		}
		return tools[i] < tools[j]
	})
	if len(tools) > n {
		tools = tools[:n]
	}
	parts := make([]string, len(tools))
	for i, tool := range tools {
		parts[i] = fmt.Sprintf("%s:%d", tool, counts[tool])
	}
	return strings.Join(parts, ", ")
}

func statusMix(counts map[int]int) string {
	if len(counts) == 0 {
		return "none"
	}
	statuses := make([]int, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Ints(statuses)
	parts := make([]string, len(statuses))
	for i, status := range statuses {
		parts[i] = fmt.Sprintf("%d:%d", status, counts[status])
	}
	return strings.Join(parts, ", ")
}

func latestNotes(notes []string, n int) string {
	if len(notes) == 0 {
		return "none"
	}
	if len(notes) > n {
		notes = notes[len(notes)-n:]
	}
	return strings.Join(notes, " | ")
}
