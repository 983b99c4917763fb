// Package phase infers the current exercise stage and outstanding evidence
// artifacts from a session's event history.
package phase

import (
	"strings"

	"github.com/soyeahso/rangecoach/internal/domain"
)

// Pattern substrings that attribute recent activity to a stage. Hits are
// counted once per pattern against the concatenated recent text, not per
// event.
var stagePatterns = map[domain.Phase][]string{
	domain.PhaseRecon:       {"nmap", "masscan", "naabu", "arp-scan", "netdiscover"},
	domain.PhaseEnumeration: {"gobuster", "ffuf", "nikto", "enum4linux", "dirsearch"},
	domain.PhaseHypothesis:  {"hypothesis", "possible weak point", "candidate issue"},
	domain.PhaseAttempt:     {"sqlmap", "hydra", "exploit", "metasploit", "poc"},
	domain.PhasePostCheck:   {"whoami", "id", "hostname", "proof", "verify impact"},
	domain.PhaseReport:      {"report", "summary", "timeline", "evidence"},
}

// RequiredArtifacts maps each stage to the evidence it needs, in the order
// missing artifacts are reported.
var RequiredArtifacts = map[domain.Phase][]string{
	domain.PhaseRecon:       {"service_inventory"},
	domain.PhaseEnumeration: {"service_inventory", "deep_service_findings"},
	domain.PhaseHypothesis:  {"ranked_hypotheses"},
	domain.PhaseAttempt:     {"attempt_results"},
	domain.PhasePostCheck:   {"impact_validation"},
	domain.PhaseReport:      {"timeline_notes", "evidence_references"},
}

var reportKeywords = []string{"report", "template", "timeline", "findings", "final notes"}
var reconKeywords = []string{"recon", "reconnaissance", "inventory", "checklist"}

const (
	noteWindow    = 10
	patternWindow = 20
)

// Detect infers the session's current stage and a confidence in [0,1].
//
// Trainee notes are an explicit override channel: report or recon keywords
// in any note among the trailing 10 events win over command history. With
// no signal at all the classifier abstains and keeps the prior stage.
func Detect(events []domain.ActivityEvent, current domain.Phase) (domain.Phase, float64) {
	if len(events) == 0 {
		return current, 0.4
	}

	noteText := noteText(tail(events, noteWindow))
	if noteText != "" {
		if containsAny(noteText, reportKeywords) {
			return domain.PhaseReport, 0.9
		}
		if containsAny(noteText, reconKeywords) {
			return domain.PhaseRecon, 0.85
		}
	}

	text := searchText(tail(events, patternWindow))

	hits := map[domain.Phase]int{}
	total := 0
	for _, p := range domain.Phases {
		for _, pattern := range stagePatterns[p] {
			if strings.Contains(text, pattern) {
				hits[p]++
				total++
			}
		}
	}
	if total == 0 {
		return current, 0.45
	}

	// Ties resolve to the earliest stage in methodology order. This is a
	// fixed, documented tie-break, not map iteration.
	winner := domain.Phases[0]
	best := -1
	for _, p := range domain.Phases {
		if hits[p] > best {
			winner, best = p, hits[p]
		}
	}

	confidence := 0.5 + (float64(best)/float64(total))*0.5
	if confidence > 0.95 {
		confidence = 0.95
	}
	return winner, confidence
}

// MissingArtifacts scans the entire event history for artifact-presence
// signals and returns the artifacts still required for phase, in the
// required-artifacts table order.
func MissingArtifacts(events []domain.ActivityEvent, phase domain.Phase) []string {
	present := inferArtifacts(events)

	missing := []string{}
	for _, artifact := range RequiredArtifacts[phase] {
		if !present[artifact] {
			missing = append(missing, artifact)
		}
	}
	return missing
}

func inferArtifacts(events []domain.ActivityEvent) map[string]bool {
	present := map[string]bool{}

	for _, ev := range events {
		var command, message string
		var note *domain.NotePayload

		switch p := ev.Payload.(type) {
		case domain.CommandPayload:
			command = strings.ToLower(p.Command)
		case domain.NotePayload:
			message = strings.ToLower(p.Message)
			note = &p
		case domain.SystemPayload:
			message = strings.ToLower(p.Message)
		}

		if containsAny(command, []string{"nmap", "masscan", "naabu"}) {
			present["service_inventory"] = true
		}
		if containsAny(command, []string{"gobuster", "ffuf", "nikto", "enum4linux"}) {
			present["deep_service_findings"] = true
		}
		if strings.Contains(message, "hypothesis") || (note != nil && note.Hypothesis != "") {
			present["ranked_hypotheses"] = true
		}
		if containsAny(command, []string{"sqlmap", "hydra", "exploit", "metasploit"}) {
			present["attempt_results"] = true
		}
		if containsAny(command, []string{"whoami", "id"}) || strings.Contains(message, "impact") {
			present["impact_validation"] = true
		}
		if note != nil {
			present["timeline_notes"] = true
			if note.EvidenceRef != "" {
				present["evidence_references"] = true
			}
		}
	}
	return present
}

// noteText concatenates note messages from the given events, lowercased.
func noteText(events []domain.ActivityEvent) string {
	var parts []string
	for _, ev := range events {
		if note, ok := ev.Payload.(domain.NotePayload); ok {
			parts = append(parts, note.Message)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// searchText concatenates the command/message/summary fields of the given
// events, lowercased, for pattern counting.
func searchText(events []domain.ActivityEvent) string {
	var parts []string
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case domain.CommandPayload:
			parts = append(parts, p.Command)
		case domain.NotePayload:
			parts = append(parts, p.Message)
		case domain.SystemPayload:
			parts = append(parts, p.Message)
		case domain.ScanPayload:
			parts = append(parts, p.Summary)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func tail(events []domain.ActivityEvent, n int) []domain.ActivityEvent {
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

func containsAny(s string, substrings []string) bool {
	if s == "" {
		return false
	}
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
