package domain

// ActionItem is one proposed next step for the trainee. Command is nil when
// the action is purely procedural, or after policy rewriting strips it.
type ActionItem struct {
	Title        string  `json:"title"`
	Rationale    string  `json:"rationale"`
	DoneCriteria string  `json:"done_criteria"`
	Command      *string `json:"command"`
}

// Cmd is a convenience for building an ActionItem command pointer.
func Cmd(s string) *string { return &s }
