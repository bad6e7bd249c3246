// Package command turns sanitized comment text into typed bot commands.
//
// Two forms are recognized:
//
//	@docbot <action> <target...>   structured form
//	docsync: <feedback>            legacy form, kept for old workflows
package command

import (
	"errors"
	"strings"

	"github.com/docsync/internal/sanitize"
)

// ActionKind identifies what the user asked the bot to do.
type ActionKind int

const (
	ActionFreeform ActionKind = iota
	ActionUpdate
	ActionClarify
	ActionAddExample
	ActionExpand
	ActionFix
	ActionApprove
	ActionReject
	ActionRevert
)

// String returns the keyword form of the action.
func (a ActionKind) String() string {
	switch a {
	case ActionUpdate:
		return "update"
	case ActionClarify:
		return "clarify"
	case ActionAddExample:
		return "add_example"
	case ActionExpand:
		return "expand"
	case ActionFix:
		return "fix"
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionRevert:
		return "revert"
	default:
		return "freeform"
	}
}

// IsGenerative reports whether the action asks for new content from the
// AI generator, as opposed to resolving an existing proposal.
func (a ActionKind) IsGenerative() bool {
	switch a {
	case ActionApprove, ActionReject, ActionRevert:
		return false
	default:
		return true
	}
}

// Command is a parsed user request.
type Command struct {
	Action  ActionKind
	Target  string // free-text subject, may be empty
	RawText string // sanitized original, retained for audit and AI context
}

// ErrNotACommand marks comments that carry neither bot prefix. The
// coordinator ignores these silently: replying to every drive-by comment
// on a pull request would be noise.
var ErrNotACommand = errors.New("not a bot command")

const (
	structuredPrefix = "@docbot"
	legacyPrefix     = "docsync:"
)

// actionKeywords maps the token after @docbot to an action.
var actionKeywords = map[string]ActionKind{
	"update":  ActionUpdate,
	"clarify": ActionClarify,
	"add":     ActionAddExample,
	"expand":  ActionExpand,
	"fix":     ActionFix,
	"approve": ActionApprove,
	"reject":  ActionReject,
	"revert":  ActionRevert,
}

// Parse recognizes a command in sanitized text. The structured prefix
// wins when a comment somehow contains both forms.
func Parse(s sanitize.Sanitized) (Command, error) {
	line := s.Line
	lowered := strings.ToLower(line)

	if idx := strings.Index(lowered, structuredPrefix); idx >= 0 {
		rest := strings.TrimSpace(line[idx+len(structuredPrefix):])
		return parseStructured(rest, s.Body), nil
	}

	if idx := strings.Index(lowered, legacyPrefix); idx >= 0 {
		remainder := strings.TrimSpace(line[idx+len(legacyPrefix):])
		return Command{Action: ActionFreeform, Target: remainder, RawText: s.Body}, nil
	}

	return Command{}, ErrNotACommand
}

func parseStructured(rest, body string) Command {
	if rest == "" {
		return Command{Action: ActionFreeform, RawText: body}
	}

	keyword := rest
	target := ""
	if idx := strings.IndexByte(rest, ' '); idx >= 0 {
		keyword = rest[:idx]
		target = strings.TrimSpace(rest[idx+1:])
	}

	action, ok := actionKeywords[strings.ToLower(keyword)]
	if !ok {
		// Unknown keyword: treat the whole remainder as freeform feedback
		// rather than bouncing the user on vocabulary.
		return Command{Action: ActionFreeform, Target: rest, RawText: body}
	}

	return Command{Action: action, Target: target, RawText: body}
}
