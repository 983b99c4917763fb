package advisor

import (
	"context"

	"github.com/soyeahso/rangecoach/internal/domain"
)

// Heuristic serves phase-appropriate playbook actions without any model.
// It is the generator of last resort and can never fail.
type Heuristic struct{}

// NewHeuristic returns the offline playbook generator.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// GenerateActions returns the playbook entry for the context's phase.
func (h *Heuristic) GenerateActions(_ context.Context, c Context) (string, []domain.ActionItem, error) {
	return heuristicReasoning(c), playbookActions(c.Phase), nil
}

// playbookActions is the fixed two-step playbook per phase. Commands use
// placeholder slots the trainee fills with in-scope values; the policy
// guard accepts the placeholders as written.
func playbookActions(phase domain.Phase) []domain.ActionItem {
	switch phase {
	case domain.PhaseRecon:
		return []domain.ActionItem{
			{
				Title:        "Build in-scope service inventory",
				Rationale:    "Inventory is required before deep enumeration.",
				Command:      domain.Cmd("nmap -sV -Pn <TARGET_IN_SCOPE>"),
				DoneCriteria: domain.DoneCriteria[domain.PhaseRecon],
			},
			{
				Title:        "Capture baseline notes",
				Rationale:    "Documenting early findings improves later hypothesis quality.",
				DoneCriteria: "At least one note per target is added to session timeline.",
			},
		}
	case domain.PhaseEnumeration:
		return []domain.ActionItem{
			{
				Title:        "Deepen service-level inspection",
				Rationale:    "Service-specific enumeration reveals candidate weak points.",
				Command:      domain.Cmd("gobuster dir -u http://<TARGET_IN_SCOPE> -w <WORDLIST_IN_LAB>"),
				DoneCriteria: domain.DoneCriteria[domain.PhaseEnumeration],
			},
			{
				Title:        "Record notable responses",
				Rationale:    "Response patterns support stronger hypotheses.",
				DoneCriteria: "Top anomalies and related evidence refs are written as notes.",
			},
		}
	case domain.PhaseHypothesis:
		return []domain.ActionItem{
			{
				Title:        "Rank top attack hypotheses",
				Rationale:    "Prioritization avoids random tool usage.",
				DoneCriteria: domain.DoneCriteria[domain.PhaseHypothesis],
			},
			{
				Title:        "Define validation plan per hypothesis",
				Rationale:    "Each hypothesis needs a measurable validation step.",
				DoneCriteria: "Every hypothesis has one in-scope verification method.",
			},
		}
	case domain.PhaseAttempt:
		return []domain.ActionItem{
			{
				Title:        "Run lab-approved verification for hypothesis #1",
				Rationale:    "Execute the smallest safe validation first.",
				Command:      domain.Cmd("<LAB_APPROVED_TOOL> <TARGET_IN_SCOPE> <SAFE_PARAMS>"),
				DoneCriteria: domain.DoneCriteria[domain.PhaseAttempt],
			},
			{
				Title:        "Log result and branch decision",
				Rationale:    "Pass/fail evidence determines the next branch quickly.",
				DoneCriteria: "Result is marked pass/fail with timestamp and evidence ref.",
			},
		}
	case domain.PhasePostCheck:
		return []domain.ActionItem{
			{
				Title:        "Validate impact boundaries in lab",
				Rationale:    "Impact must be demonstrated and bounded within scenario scope.",
				Command:      domain.Cmd("whoami"),
				DoneCriteria: domain.DoneCriteria[domain.PhasePostCheck],
			},
			{
				Title:        "Collect cleanup and reset notes",
				Rationale:    "Lab reproducibility depends on clean post-check handoff.",
				DoneCriteria: "Containment/reset notes are captured for instructor review.",
			},
		}
	default:
		return []domain.ActionItem{
			{
				Title:        "Compile finding timeline",
				Rationale:    "A clear timeline is required for grading and replay.",
				DoneCriteria: domain.DoneCriteria[domain.PhaseReport],
			},
			{
				Title:        "Attach evidence references",
				Rationale:    "Each finding must map to concrete evidence.",
				DoneCriteria: "Every finding includes at least one evidence reference.",
			},
		}
	}
}
