package frame

import (
	"regexp"
	"strings"
)

// IssueKind classifies a problem with an allow-list line.
type IssueKind string

const (
	IssueInvalid    IssueKind = "invalid"
	IssueUnanchored IssueKind = "unanchored"
)

// PatternIssue describes one problem found by LintPatterns. Line is 1-based
// over the non-blank lines.
type PatternIssue struct {
	Line    int
	Pattern string
	Kind    IssueKind
	Message string
}

// LintPatterns reports patterns that will be skipped and patterns that can
// match more hosts than intended because they are not anchored with ^ and $.
func LintPatterns(text string) []PatternIssue {
	var issues []PatternIssue
	for i, pattern := range splitLines(text) {
		if _, err := regexp.Compile(pattern); err != nil {
			issues = append(issues, PatternIssue{
				Line:    i + 1,
				Pattern: pattern,
				Kind:    IssueInvalid,
				Message: err.Error(),
			})
			continue
		}
		if !strings.HasPrefix(pattern, "^") || !strings.HasSuffix(pattern, "$") {
			issues = append(issues, PatternIssue{
				Line:    i + 1,
				Pattern: pattern,
				Kind:    IssueUnanchored,
				Message: "pattern matches anywhere in the host; wrap it in ^ and $ to match the whole host",
			})
		}
	}
	return issues
}
