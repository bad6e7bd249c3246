package coordinator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docsync/internal/applier"
	"github.com/docsync/internal/command"
	"github.com/docsync/internal/hosting"
	"github.com/docsync/internal/sanitize"
)

// previewLimit caps the diff preview in proposal replies so replies stay
// readable on the host's comment UI.
const previewLimit = 40

func rejectionReply(rej *sanitize.RejectionError) string {
	switch rej.Category {
	case "too_short":
		return "❌ **Request rejected**: feedback is too short. Please describe what you want changed in at least a sentence."
	default:
		return fmt.Sprintf("❌ **Request rejected**: your comment references %q, which touches %s content the bot is not allowed to handle. Please rephrase without it.",
			rej.Pattern, strings.ReplaceAll(rej.Category, "_", " "))
	}
}

func contextReply(err *ContextError) string {
	return fmt.Sprintf("⚠️ This pull request was not created by DocSync, so documentation commands are disabled here (%s).", err.PRID)
}

func generationReply(err *GenerationError) string {
	return fmt.Sprintf("⚠️ **Generation failed**: %v\n\nNothing was changed. You can re-issue the command to try again.", err.Cause)
}

func errorReply(err error) string {
	return fmt.Sprintf("⚠️ **Something went wrong**: %v\n\nNothing was changed.", err)
}

func applyFailureReply(err error) string {
	var forbidden *applier.ForbiddenFileError
	if errors.As(err, &forbidden) {
		return fmt.Sprintf("❌ **Refused**: %v. Only documentation files can be modified.", forbidden)
	}
	return fmt.Sprintf("⚠️ **Commit failed**: %v\n\nThe proposal is still pending; `@docbot approve` will retry.", err)
}

func nothingPendingReply() string {
	return "ℹ️ Nothing is pending approval on this pull request. Ask for a change first, e.g. `@docbot update the installation section`."
}

func noHistoryReply() string {
	return fmt.Sprintf("ℹ️ Cannot revert: %s.", ErrNoHistory)
}

func appliedReply(filePath string, ref hosting.CommitRef) string {
	reply := fmt.Sprintf("✅ **Applied** the pending change to `%s` in commit `%s`.", filePath, shortSHA(ref.SHA))
	if ref.WebURL != "" {
		reply += fmt.Sprintf(" ([view](%s))", ref.WebURL)
	}
	return reply
}

func rejectedReply(filePath string) string {
	return fmt.Sprintf("🗑️ **Discarded** the pending proposal for `%s`. Nothing was committed.", filePath)
}

func revertedReply(filePath string, ref hosting.CommitRef) string {
	return fmt.Sprintf("↩️ **Reverted** the last change to `%s` in commit `%s`.", filePath, shortSHA(ref.SHA))
}

func proposalReply(cmd command.Command, filePath, oldContent, newContent string, replaced bool) string {
	var sb strings.Builder
	if replaced {
		sb.WriteString("🔄 **Replaced the previous proposal.**\n\n")
	}
	sb.WriteString(fmt.Sprintf("📝 **Proposed %s** for `%s`:\n\n", cmd.Action, filePath))
	sb.WriteString("```diff\n")
	sb.WriteString(diffPreview(oldContent, newContent))
	sb.WriteString("\n```\n\n")
	sb.WriteString("Reply `@docbot approve` to commit, `@docbot reject` to discard, or issue another command to regenerate.")
	return sb.String()
}

// diffPreview renders a line-level preview: removed lines first, then
// added lines, truncated to previewLimit lines total. It is a preview
// for humans, not a patch.
func diffPreview(oldContent, newContent string) string {
	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")

	oldSet := make(map[string]struct{}, len(oldLines))
	for _, l := range oldLines {
		oldSet[l] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newLines))
	for _, l := range newLines {
		newSet[l] = struct{}{}
	}

	var out []string
	for _, l := range oldLines {
		if _, kept := newSet[l]; !kept && strings.TrimSpace(l) != "" {
			out = append(out, "- "+l)
		}
	}
	for _, l := range newLines {
		if _, existed := oldSet[l]; !existed && strings.TrimSpace(l) != "" {
			out = append(out, "+ "+l)
		}
	}

	if len(out) == 0 {
		return "(no visible line changes)"
	}
	if len(out) > previewLimit {
		out = append(out[:previewLimit], fmt.Sprintf("… %d more lines", len(out)-previewLimit))
	}
	return strings.Join(out, "\n")
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
