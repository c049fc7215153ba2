// Package sdkmessage defines the typed message shapes produced by the LLM
// invocation surface (the "query" stream) that the core consumes but does
// not implement, plus a deterministic fake used by tests.
package sdkmessage

import "encoding/json"

// Type tags for the known SDK message shapes. Anything else is routed to
// the generic "other" arm rather than rejected, since the stream is owned
// by an external collaborator and new tags can appear.
const (
	TypeAssistant = "assistant"
	TypeUser      = "user"
	TypeSystem    = "system"
	TypeResult    = "result"
	TypeError     = "error"
)

// ContentBlock is one block of a structured message content array, e.g.
// {"type":"text","text":"..."} or a tool_use/tool_result block.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// InnerMessage models the nested "message" field assistant/user events
// carry, whose own "content" may be a bare string or a content-block array.
type InnerMessage struct {
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Message is the tagged variant for one line of job output. Unknown types
// still round-trip through Raw so readers never lose data.
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Message   *InnerMessage   `json:"message,omitempty"`
	Result    *Result         `json:"result,omitempty"`
	Error     *ErrorInfo      `json:"error,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// Result carries the final summary payload of a "result" message.
type Result struct {
	Success bool   `json:"success"`
	Summary string `json:"summary,omitempty"`
}

// ErrorInfo carries the payload of an "error" message.
type ErrorInfo struct {
	Message string `json:"message"`
}

// Parse decodes one JSON line into a Message, preserving the raw bytes.
func Parse(line []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return Message{}, err
	}
	m.Raw = append([]byte(nil), line...)
	return m, nil
}

// ExtractText pulls assistant-visible text out of a message using the
// fallback order spec'd for chat connectors: a bare string at the root
// "content" field, a bare string at "message.content", or an array of
// {"type":"text","text":...} blocks concatenated in order. Returns ""
// (not an error) when no text is present, since callers treat absence as
// "nothing to send" rather than a failure.
func ExtractText(m Message) string {
	if len(m.Content) > 0 {
		if s, ok := decodeString(m.Content); ok {
			return s
		}
	}
	if m.Message == nil || len(m.Message.Content) == 0 {
		return ""
	}
	if s, ok := decodeString(m.Message.Content); ok {
		return s
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(m.Message.Content, &blocks); err != nil {
		return ""
	}
	var out string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			out += b.Text
		}
	}
	return out
}

// ExtractToolUseBlocks returns the tool_use content blocks of an assistant
// message, or nil if there are none / the content isn't a block array.
func ExtractToolUseBlocks(m Message) []ContentBlock {
	if m.Message == nil || len(m.Message.Content) == 0 {
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(m.Message.Content, &blocks); err != nil {
		return nil
	}
	var out []ContentBlock
	for _, b := range blocks {
		if b.Type == "tool_use" {
			out = append(out, b)
		}
	}
	return out
}

// ExtractToolResults returns the tool_result content blocks of a message.
func ExtractToolResults(m Message) []ContentBlock {
	if m.Message == nil || len(m.Message.Content) == 0 {
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(m.Message.Content, &blocks); err != nil {
		return nil
	}
	var out []ContentBlock
	for _, b := range blocks {
		if b.Type == "tool_result" {
			out = append(out, b)
		}
	}
	return out
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
