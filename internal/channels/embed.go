package channels

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fleetops/fleetops/internal/sdkmessage"
)

// Colors used to render a tool-result embed, per spec.md §4.6.
const (
	ColorSuccess = 0x5865F2
	ColorError   = 0xEF4444
)

const (
	defaultMaxOutputChars = 900
	discordFieldValueCap  = 1024
	inputSummaryMaxChars  = 200
)

// codeBlockFenceOverhead is the literal character cost codeBlock adds
// around its content ("```\n" + "\n```"), which must be reserved from
// discordFieldValueCap so a fenced Result/Error field never exceeds
// Discord's hard per-field cap.
const codeBlockFenceOverhead = len("```\n") + len("\n```")

// Field is one embed field, e.g. {"Duration", "1.2s", true}.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a platform-agnostic rendering of a tool invocation or status
// message; Discord and Slack managers translate it into their own
// message-card shape.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
}

// toolInputKeys maps a tool name to the input field spec.md §4.6 says to
// summarize: Bash->command, Read/Write/Edit->file_path, Glob/Grep->pattern,
// WebSearch->query. Tools outside this list get no summary.
var toolInputKeys = map[string]string{
	"Bash":      "command",
	"Read":      "file_path",
	"Write":     "file_path",
	"Edit":      "file_path",
	"Glob":      "pattern",
	"Grep":      "pattern",
	"WebSearch": "query",
}

// getToolInputSummary extracts the spec'd input field of a tool_use
// block's Input JSON and truncates it to inputSummaryMaxChars, per
// spec.md §4.6. Returns "" if the tool isn't in toolInputKeys, Input is
// absent/malformed, or the field itself is absent.
func getToolInputSummary(block sdkmessage.ContentBlock) string {
	key, ok := toolInputKeys[block.Name]
	if !ok || len(block.Input) == 0 {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(block.Input, &fields); err != nil {
		return ""
	}
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return truncate(s, inputSummaryMaxChars)
}

// humanizeBytes renders n with a "k" suffix above 1000, per spec.md
// §4.6's "Output length summary".
func humanizeBytes(n int) string {
	if n > 1000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

// BuildToolEmbed renders a tool_use block and its matching tool_result
// block (nil if the result hasn't arrived yet) into an Embed, per
// spec.md §4.6. maxOutputChars governs the Result field's truncation
// (<=0 defaults to defaultMaxOutputChars) and is additionally capped at
// Discord's 1024-char field limit.
func BuildToolEmbed(use sdkmessage.ContentBlock, result *sdkmessage.ContentBlock, duration time.Duration, maxOutputChars int) Embed {
	if maxOutputChars <= 0 {
		maxOutputChars = defaultMaxOutputChars
	}
	if maxOutputChars > discordFieldValueCap-codeBlockFenceOverhead {
		maxOutputChars = discordFieldValueCap - codeBlockFenceOverhead
	}

	e := Embed{Title: use.Name, Color: ColorSuccess}
	if summary := getToolInputSummary(use); summary != "" {
		e.Description = summary
	}

	if duration > 0 {
		e.Fields = append(e.Fields, Field{Name: "Duration", Value: duration.Round(time.Millisecond).String(), Inline: true})
	}

	if result == nil {
		return e
	}

	e.Fields = append(e.Fields, Field{Name: "Output", Value: humanizeBytes(len(result.Content)), Inline: true})

	body := codeBlock(truncate(result.Content, maxOutputChars))
	if result.IsError {
		e.Color = ColorError
		e.Fields = append(e.Fields, Field{Name: "Error", Value: body})
	} else {
		e.Fields = append(e.Fields, Field{Name: "Result", Value: body})
	}
	return e
}

func codeBlock(s string) string {
	return "```\n" + s + "\n```"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	const ellipsis = "…"
	if max <= len(ellipsis) {
		return strings.Repeat(".", max)
	}
	return s[:max-len(ellipsis)] + ellipsis
}
