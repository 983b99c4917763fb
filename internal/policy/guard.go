// Package policy rewrites proposed actions against the lab safety policy.
//
// A violation is never an error: the offending command is stripped and the
// reason appended to the action's rationale, so the suggestion flow always
// completes.
package policy

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/soyeahso/rangecoach/internal/domain"
)

var (
	ipPattern   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	hostPattern = regexp.MustCompile(`\b[a-zA-Z0-9_-]+(?:\.[a-zA-Z0-9_-]+)+\b`)
)

// scopePlaceholder marks a command slot the trainee fills with an in-scope
// target; it is always considered in scope.
const scopePlaceholder = "<target_in_scope>"

// Guard strips commands that are blocklisted, use a disallowed tool, or
// reference an out-of-scope target.
type Guard struct {
	allowedTools map[string]bool
	blocklist    []string
}

// NewGuard builds a guard from an allowed-tool list and blocklist substring
// patterns. Both are matched case-insensitively.
func NewGuard(allowedTools, blocklist []string) *Guard {
	allowed := make(map[string]bool, len(allowedTools))
	for _, tool := range allowedTools {
		if t := strings.ToLower(strings.TrimSpace(tool)); t != "" {
			allowed[t] = true
		}
	}
	patterns := make([]string, 0, len(blocklist))
	for _, p := range blocklist {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Guard{allowedTools: allowed, blocklist: patterns}
}

// Sanitize rewrites actions in place of policy violations. The result has
// the same length and order as the input; actions without a command pass
// through unchanged. Checks run in order (blocklist, tool allowlist, scope)
// and stop for an action as soon as its command is stripped.
func (g *Guard) Sanitize(actions []domain.ActionItem, targetScope []string) []domain.ActionItem {
	scope := normalizeScope(targetScope)

	out := make([]domain.ActionItem, 0, len(actions))
	for _, action := range actions {
		command := action.Command
		var reasons []string

		if command != nil {
			lower := strings.ToLower(*command)
			for _, pattern := range g.blocklist {
				if strings.Contains(lower, pattern) {
					reasons = append(reasons, "command removed by blocklist policy")
					command = nil
					break
				}
			}
		}

		if command != nil {
			if tool := extractTool(*command); tool != "" && !g.allowedTools[tool] {
				reasons = append(reasons, fmt.Sprintf("tool '%s' is not in allowlist", tool))
				command = nil
			}
		}

		if command != nil && len(scope) > 0 {
			if outOfScope := findOutOfScopeTargets(*command, scope); len(outOfScope) > 0 {
				reasons = append(reasons, fmt.Sprintf(
					"target(s) %s are out of session scope", strings.Join(outOfScope, ", ")))
				command = nil
			}
		}

		if len(reasons) > 0 {
			action.Rationale = fmt.Sprintf("%s (%s)", action.Rationale, strings.Join(reasons, "; "))
			action.Command = nil
		} else {
			action.Command = command
		}
		out = append(out, action)
	}
	return out
}

// extractTool returns the first whitespace-delimited token, lowercased.
func extractTool(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// normalizeTarget lowercases and trims a scope entry or command candidate;
// URLs reduce to their hostname.
func normalizeTarget(target string) string {
	candidate := strings.ToLower(strings.TrimSpace(target))
	if candidate == "" {
		return ""
	}
	if strings.Contains(candidate, "://") {
		parsed, err := url.Parse(candidate)
		if err != nil {
			return ""
		}
		return strings.ToLower(parsed.Hostname())
	}
	return candidate
}

func normalizeScope(targetScope []string) map[string]bool {
	scope := map[string]bool{}
	for _, entry := range targetScope {
		if normalized := normalizeTarget(entry); normalized != "" {
			scope[normalized] = true
		}
	}
	return scope
}

// findOutOfScopeTargets extracts IP and hostname candidates from the
// command and returns the normalized ones absent from scope, sorted.
func findOutOfScopeTargets(command string, scope map[string]bool) []string {
	if strings.Contains(strings.ToLower(command), scopePlaceholder) {
		return nil
	}

	seen := map[string]bool{}
	for _, candidate := range ipPattern.FindAllString(command, -1) {
		seen[candidate] = true
	}
	for _, candidate := range hostPattern.FindAllString(command, -1) {
		seen[candidate] = true
	}

	var out []string
	added := map[string]bool{}
	for candidate := range seen {
		normalized := normalizeTarget(candidate)
		if normalized == "" || scope[normalized] || added[normalized] {
			continue
		}
		added[normalized] = true
		out = append(out, normalized)
	}
	sort.Strings(out)
	return out
}
