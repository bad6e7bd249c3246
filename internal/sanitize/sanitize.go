package sanitize

import (
	"fmt"
	"strings"
)

// MinFeedbackLength is the minimum number of characters a feedback payload
// must contain after trimming. Shorter comments are rejected because they
// carry too little signal for the generator to act on.
const MinFeedbackLength = 10

// Sanitized holds a comment body that passed validation.
// Line is the first non-empty line, used for command detection.
// Body preserves the full original text for AI context.
type Sanitized struct {
	Line string
	Body string
}

// RejectionError reports why a comment was refused before parsing.
type RejectionError struct {
	Category string // "credential", "non_doc_file", "infrastructure", "vcs_verb", "too_short"
	Pattern  string // the matched substring, empty for length rejections
}

func (e *RejectionError) Error() string {
	if e.Pattern == "" {
		return fmt.Sprintf("comment rejected: %s", e.Category)
	}
	return fmt.Sprintf("comment rejected: %s pattern %q", e.Category, e.Pattern)
}

// blockedPatterns maps a category to the substrings that trigger it.
// Matching is case-insensitive and deliberately permissive: a false
// positive costs the user a re-phrase, a false negative could leak
// secrets into a prompt or touch files the bot must never touch.
var blockedPatterns = []struct {
	category string
	patterns []string
}{
	{"credential", []string{"secret", "token", "password", "api_key", "credential", ".env", "private_key", "ssh"}},
	{"non_doc_file", []string{".yml", ".yaml", ".json", ".js", ".ts", ".py", "package.json"}},
	{"infrastructure", []string{"workflow", "action", "database", "sql"}},
	{"vcs_verb", []string{"commit", "push", "merge", "delete"}},
}

// Sanitize validates raw comment text and normalizes it for command
// detection. It performs no external calls; the decision is pure.
func Sanitize(raw string) (Sanitized, error) {
	body := strings.TrimSpace(raw)

	lowered := strings.ToLower(body)
	for _, group := range blockedPatterns {
		for _, p := range group.patterns {
			if strings.Contains(lowered, p) {
				return Sanitized{}, &RejectionError{Category: group.category, Pattern: p}
			}
		}
	}

	// The legacy "docsync:" prefix is boilerplate, not feedback; strip it
	// before measuring so "docsync: hi" counts as two characters.
	payload := body
	if strings.HasPrefix(lowered, "docsync:") {
		payload = strings.TrimSpace(body[len("docsync:"):])
	}
	if len(payload) < MinFeedbackLength {
		return Sanitized{}, &RejectionError{Category: "too_short"}
	}

	line := body
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}

	return Sanitized{Line: line, Body: body}, nil
}
