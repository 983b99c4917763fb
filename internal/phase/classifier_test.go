package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/rangecoach/internal/domain"
)

func commandEvent(cmd string) domain.ActivityEvent {
	return domain.NewEvent(domain.CommandPayload{Command: cmd})
}

func noteEvent(msg string) domain.ActivityEvent {
	return domain.NewEvent(domain.NotePayload{Message: msg})
}

func TestDetectNoEvents(t *testing.T) {
	phase, conf := Detect(nil, domain.PhaseEnumeration)
	assert.Equal(t, domain.PhaseEnumeration, phase)
	assert.InDelta(t, 0.4, conf, 1e-9)
}

func TestDetectNoteReportOverride(t *testing.T) {
	// Heavy recon history, but a report note in the trailing window wins.
	events := []domain.ActivityEvent{
		commandEvent("nmap -sV 10.0.0.1"),
		commandEvent("masscan -p1-65535 10.0.0.0/24"),
		noteEvent("starting on the report template now"),
	}

	phase, conf := Detect(events, domain.PhaseRecon)
	assert.Equal(t, domain.PhaseReport, phase)
	assert.GreaterOrEqual(t, conf, 0.8)
}

func TestDetectNoteReconOverride(t *testing.T) {
	events := []domain.ActivityEvent{
		commandEvent("sqlmap -u http://10.0.0.5/item?id=1"),
		noteEvent("going back to the recon checklist"),
	}

	phase, conf := Detect(events, domain.PhaseAttempt)
	assert.Equal(t, domain.PhaseRecon, phase)
	assert.InDelta(t, 0.85, conf, 1e-9)
}

func TestDetectNoteOverrideOnlyInTrailingWindow(t *testing.T) {
	events := []domain.ActivityEvent{noteEvent("report template")}
	for i := 0; i < 12; i++ {
		events = append(events, commandEvent("nmap -sV 10.0.0.1"))
	}

	phase, _ := Detect(events, domain.PhaseRecon)
	assert.Equal(t, domain.PhaseRecon, phase, "note outside last 10 events must not override")
}

func TestDetectPatternCounting(t *testing.T) {
	events := []domain.ActivityEvent{
		commandEvent("gobuster dir -u http://10.0.0.5 -w common.txt"),
		commandEvent("ffuf -u http://10.0.0.5/FUZZ"),
		commandEvent("nmap -sV 10.0.0.5"),
	}

	phase, conf := Detect(events, domain.PhaseRecon)
	assert.Equal(t, domain.PhaseEnumeration, phase)
	// 2 enumeration hits out of 3 total.
	assert.InDelta(t, 0.5+(2.0/3.0)*0.5, conf, 1e-9)
}

func TestDetectAbstains(t *testing.T) {
	events := []domain.ActivityEvent{
		commandEvent("ls -la"),
		commandEvent("cat notes.txt"),
	}

	phase, conf := Detect(events, domain.PhaseHypothesis)
	assert.Equal(t, domain.PhaseHypothesis, phase)
	assert.InDelta(t, 0.45, conf, 1e-9)
}

func TestDetectTieBreakUsesTableOrder(t *testing.T) {
	// One recon hit and one attempt hit: earliest stage in methodology
	// order wins.
	events := []domain.ActivityEvent{
		commandEvent("masscan -p80 10.0.0.5"),
		commandEvent("sqlmap -u http://10.0.0.5/item?x=1"),
	}

	phase, conf := Detect(events, domain.PhaseHypothesis)
	assert.Equal(t, domain.PhaseRecon, phase)
	assert.InDelta(t, 0.75, conf, 1e-9)
}

func TestDetectConfidenceCapped(t *testing.T) {
	events := []domain.ActivityEvent{
		commandEvent("nmap masscan naabu arp-scan netdiscover"),
	}

	phase, conf := Detect(events, domain.PhaseRecon)
	assert.Equal(t, domain.PhaseRecon, phase)
	assert.LessOrEqual(t, conf, 0.95)
}

func TestDetectScanSummaryCounts(t *testing.T) {
	events := []domain.ActivityEvent{
		domain.NewEvent(domain.ScanPayload{Tool: "portscan", Summary: "nmap found 3 open ports"}),
	}

	phase, _ := Detect(events, domain.PhaseReport)
	assert.Equal(t, domain.PhaseRecon, phase)
}

func TestMissingArtifactsRecon(t *testing.T) {
	missing := MissingArtifacts(nil, domain.PhaseRecon)
	assert.Equal(t, []string{"service_inventory"}, missing)

	events := []domain.ActivityEvent{commandEvent("nmap -sV 10.0.0.1")}
	assert.Empty(t, MissingArtifacts(events, domain.PhaseRecon))
}

func TestMissingArtifactsOrderFollowsTable(t *testing.T) {
	// Only deep findings present; service_inventory should still be
	// reported first per table order.
	events := []domain.ActivityEvent{commandEvent("gobuster dir -u http://10.0.0.5")}
	missing := MissingArtifacts(events, domain.PhaseEnumeration)
	assert.Equal(t, []string{"service_inventory"}, missing)

	missing = MissingArtifacts(nil, domain.PhaseEnumeration)
	assert.Equal(t, []string{"service_inventory", "deep_service_findings"}, missing)
}

func TestMissingArtifactsScansFullHistory(t *testing.T) {
	// Artifact presence is not windowed: an nmap run far in the past still
	// counts.
	events := []domain.ActivityEvent{commandEvent("nmap -sV 10.0.0.1")}
	for i := 0; i < 40; i++ {
		events = append(events, commandEvent("echo filler"))
	}
	assert.Empty(t, MissingArtifacts(events, domain.PhaseRecon))
}

func TestMissingArtifactsReport(t *testing.T) {
	missing := MissingArtifacts(nil, domain.PhaseReport)
	assert.Equal(t, []string{"timeline_notes", "evidence_references"}, missing)

	events := []domain.ActivityEvent{
		domain.NewEvent(domain.NotePayload{Message: "pivoted to admin panel", EvidenceRef: "shot-042.png"}),
	}
	assert.Empty(t, MissingArtifacts(events, domain.PhaseReport))
}

func TestMissingArtifactsHypothesisFromPayloadField(t *testing.T) {
	events := []domain.ActivityEvent{
		domain.NewEvent(domain.NotePayload{Message: "idk yet", Hypothesis: "weak session tokens"}),
	}
	assert.Empty(t, MissingArtifacts(events, domain.PhaseHypothesis))
}
