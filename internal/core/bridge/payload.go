package bridge

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

const (
	// maxPostGraphemes is the external platform's post length ceiling.
	// Counted in grapheme clusters, not bytes: emoji and combining marks
	// are one unit each, matching how the platform counts.
	maxPostGraphemes = 300

	// truncationMarker is appended when content text is cut.
	truncationMarker = "…"
)

// broadcastPayload is the assembled outbound post.
type broadcastPayload struct {
	Text      string
	Truncated bool
}

// buildBroadcastPayload assembles the outbound post text: content text
// followed by an attribution line naming the local author and a backlink
// to the original content. The attribution is always carried whole, so
// the content budget is whatever the platform ceiling leaves after it;
// the full post never exceeds maxPostGraphemes.
func buildBroadcastPayload(content *Content, author *Author, externalHandle, publicBaseURL string) broadcastPayload {
	var attribution strings.Builder
	attribution.WriteString("\n\n— ")
	attribution.WriteString(displayName(author))
	if externalHandle != "" {
		attribution.WriteString(" (@")
		attribution.WriteString(externalHandle)
		attribution.WriteString(")")
	}
	attribution.WriteString("\n")
	attribution.WriteString(contentURL(publicBaseURL, content.ID))

	budget := maxPostGraphemes - uniseg.GraphemeClusterCount(attribution.String())
	if budget < 0 {
		budget = 0
	}

	text, truncated := truncateGraphemes(contentText(content), budget)

	return broadcastPayload{
		Text:      text + attribution.String(),
		Truncated: truncated,
	}
}

// contentText joins title and body; either may be empty.
func contentText(content *Content) string {
	title := strings.TrimSpace(content.Title)
	body := strings.TrimSpace(content.Body)

	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + "\n\n" + body
	}
}

// truncateGraphemes cuts s to at most limit grapheme clusters, including
// the truncation marker when a cut happens.
func truncateGraphemes(s string, limit int) (string, bool) {
	if uniseg.GraphemeClusterCount(s) <= limit {
		return s, false
	}

	// Reserve one grapheme for the marker.
	keep := limit - uniseg.GraphemeClusterCount(truncationMarker)

	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < keep && g.Next(); i++ {
		b.WriteString(g.Str())
	}

	return strings.TrimRight(b.String(), " \n\t") + truncationMarker, true
}

// displayName prefers the author's display name, falling back to the
// username so attribution is never blank.
func displayName(author *Author) string {
	if author == nil {
		return ""
	}
	if strings.TrimSpace(author.DisplayName) != "" {
		return author.DisplayName
	}
	return author.Username
}

// contentURL is the backlink to the original content on the local platform.
func contentURL(publicBaseURL string, contentID int64) string {
	return fmt.Sprintf("%s/posts/%d", strings.TrimRight(publicBaseURL, "/"), contentID)
}
