package domain

// Phase is one stage of the exercise methodology. The ordering below is
// advisory: trainees can move backwards and forwards freely.
type Phase string

const (
	PhaseRecon       Phase = "recon"
	PhaseEnumeration Phase = "enumeration"
	PhaseHypothesis  Phase = "hypothesis"
	PhaseAttempt     Phase = "attempt"
	PhasePostCheck   Phase = "post_check"
	PhaseReport      Phase = "report"
)

// Phases lists all stages in methodology order. Code that breaks ties
// between stages relies on this fixed order, so it must not be reordered.
var Phases = []Phase{
	PhaseRecon,
	PhaseEnumeration,
	PhaseHypothesis,
	PhaseAttempt,
	PhasePostCheck,
	PhaseReport,
}

// DoneCriteria describes what completes each stage. Used both for action
// templates and for filling in defaults on generated actions.
var DoneCriteria = map[Phase]string{
	PhaseRecon:       "Service inventory exists for each in-scope target with evidence.",
	PhaseEnumeration: "At least one deep finding per discovered service is documented.",
	PhaseHypothesis:  "1-3 ranked hypotheses are written with validation plans.",
	PhaseAttempt:     "Each hypothesis has a pass/fail validation result and timestamp.",
	PhasePostCheck:   "Impact verification and containment notes are captured.",
	PhaseReport:      "Timeline, findings, and evidence references are complete.",
}

// IsValid reports whether p is a known phase.
func (p Phase) IsValid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}
