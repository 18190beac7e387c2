package conversation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/starford/glean/internal/aiclient"
)

// User-visible assistant texts for paths that never reach the AI service or
// fail on the way.
const (
	MsgNothingToSummarize = "There's nothing to summarize yet. Upload some screenshots first!"
	MsgTimeout            = "The assistant timed out before replying. Please try again."
	MsgConnectivity       = "I couldn't reach the assistant service. Check your connection and try again."
	MsgGenericFailure     = "Sorry, something went wrong while talking to the assistant. Please try again."
	MsgSummaryFailure     = "Sorry, I couldn't generate a summary right now. Please try again."
)

// transcript renders a chat exchange as a note block.
func transcript(message, reply string) string {
	return fmt.Sprintf("**You:** %s\n\n**AI:** %s", message, reply)
}

// summaryText renders a summarize response as an assistant turn.
func summaryText(r *aiclient.SummarizeResponse) string {
	var b strings.Builder
	if r.SuggestedTitle != "" {
		fmt.Fprintf(&b, "**%s**\n\n", r.SuggestedTitle)
	}
	b.WriteString(r.CondensedSummary)
	writeBullets(&b, "Key Highlights", r.KeyHighlights)
	writeBullets(&b, "Recommendations", r.Recommendations)
	return strings.TrimSpace(b.String())
}

func writeBullets(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n**%s:**", title)
	for _, it := range items {
		b.WriteString("\n- " + it)
	}
}

// failureText maps a remote call error to a message the user can act on.
func failureText(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return MsgTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return MsgTimeout
		}
		return MsgConnectivity
	}
	return MsgGenericFailure
}
