// Package abort implements the "ABORT ERROR" escape hatch: a substring scan
// applied to any text an external collaborator (the Claude executor, a tool
// result) hands back to the server. Detecting the pattern is a capability
// the caller chooses how to act on — the package itself never exits the
// process, so library embedders can opt into return-an-error semantics (the
// cmd/swissarmyhammer entrypoint is the one place that turns Detect's result
// into os.Exit(2)).
package abort

import (
	"strings"

	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
)

// Pattern is the exact, case-sensitive substring that triggers an abort.
const Pattern = "ABORT ERROR"

// ClaudeFailurePattern is a second literal that is treated identically to Pattern.
const ClaudeFailurePattern = "Failed: Claude command failed: Claude execution failed"

// contextLines is how many lines of surrounding context Detect includes on either
// side of the matched line.
const contextLines = 2

// Detect scans output for Pattern or ClaudeFailurePattern. It returns a
// *swerr.Error of KindActionAbort carrying up to contextLines lines of
// context on either side of the match, or nil if neither pattern is present.
//
// The scan is a plain substring match: case variations ("abort error"),
// underscores ("ABORT_ERROR"), or the pattern appearing only as part of a
// longer, unrelated word do not match because they are not the literal
// substring "ABORT ERROR".
func Detect(output string) error {
	if strings.Contains(output, Pattern) {
		return swerr.Newf(swerr.KindActionAbort, "found %s in output: %s", Pattern, extractContext(output, Pattern))
	}
	if strings.Contains(output, ClaudeFailurePattern) {
		return swerr.Newf(swerr.KindActionAbort, "Claude execution failed, treating as %s: %s", Pattern, extractContext(output, ClaudeFailurePattern))
	}
	return nil
}

func extractContext(output, pattern string) string {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if strings.Contains(line, pattern) {
			start := i - contextLines
			if start < 0 {
				start = 0
			}
			end := i + contextLines + 1
			if end > len(lines) {
				end = len(lines)
			}
			return strings.Join(lines[start:end], "\n")
		}
	}
	if len(output) > 200 {
		return output[:200] + "..."
	}
	return output
}
