// Package channels holds the chat-platform-agnostic pieces shared by the
// Discord and Slack managers: response splitting for each platform's
// message-length cap, and tool-invocation embed rendering. Per-platform
// connector and routing logic live in internal/channels/discord and
// internal/channels/slack.
package channels

import "strings"

// boundaryWindow is how far back from the limit SplitResponse will look
// for a natural break before falling back to a hard split, per spec.md
// §4.6's splitResponse contract.
const boundaryWindow = 500

// SplitResponse splits text into chunks no longer than limit, preferring
// a paragraph break, then a newline, then a space, found within the last
// boundaryWindow characters before the limit. If codeFenceAware is true
// (Discord; Slack has no code-fence rewriting at this level per spec.md
// §4.7), a split landing inside an open ``` fence closes the fence at
// the end of its chunk and reopens it (with the same language tag) at
// the start of the next, so the platform renders continuous code.
// Concatenating the returned chunks (after undoing the fence rewrite)
// reproduces text exactly; text of length <= limit always returns a
// single chunk equal to text, including "" -> [""].
func SplitResponse(text string, limit int, codeFenceAware bool) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len(remaining) > limit {
		cut := findBoundary(remaining, limit)
		open, lang := false, ""

		if codeFenceAware {
			open, lang = scanFenceState(remaining[:cut], false, "")
			if open && cut > limit-len(fenceClose) {
				// Re-cut so the appended closing fence still fits the limit.
				cut = findBoundary(remaining, limit-len(fenceClose))
				open, lang = scanFenceState(remaining[:cut], false, "")
			}
		}

		chunk := remaining[:cut]
		rest := remaining[cut:]
		if open {
			// Close the fence here and reopen it at the start of the next
			// chunk; the reopening marker makes the rest self-contained, so
			// the next iteration scans from a closed state again.
			chunk += fenceClose
			rest = "```" + lang + "\n" + rest
		}

		chunks = append(chunks, chunk)
		remaining = rest
	}
	chunks = append(chunks, remaining)
	return chunks
}

// fenceClose is appended to a chunk that would otherwise leave a ```
// fence open across the chunk boundary.
const fenceClose = "\n```"

func findBoundary(s string, limit int) int {
	if len(s) <= limit {
		return len(s)
	}
	windowStart := limit - boundaryWindow
	if windowStart < 0 {
		windowStart = 0
	}
	window := s[windowStart:limit]

	if idx := strings.LastIndex(window, "\n\n"); idx >= 0 {
		return windowStart + idx + 2
	}
	if idx := strings.LastIndex(window, "\n"); idx >= 0 {
		return windowStart + idx + 1
	}
	if idx := strings.LastIndex(window, " "); idx >= 0 {
		return windowStart + idx + 1
	}
	return limit
}

// scanFenceState walks chunk's ``` occurrences, toggling fence state and
// capturing the language tag of a still-open fence at the end of chunk.
func scanFenceState(chunk string, open bool, lang string) (bool, string) {
	i := 0
	for {
		idx := strings.Index(chunk[i:], "```")
		if idx < 0 {
			break
		}
		pos := i + idx
		if !open {
			lang = fenceLangAt(chunk[pos+3:])
			open = true
		} else {
			open = false
			lang = ""
		}
		i = pos + 3
	}
	return open, lang
}

func fenceLangAt(s string) string {
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[:nl]
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
