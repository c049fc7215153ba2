package sdkmessage

import "testing"

func TestExtractTextFromRootContentString(t *testing.T) {
	m, err := Parse([]byte(`{"type":"assistant","content":"hello"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := ExtractText(m); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestExtractTextFromMessageContentString(t *testing.T) {
	m, err := Parse([]byte(`{"type":"assistant","message":{"role":"assistant","content":"hi there"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := ExtractText(m); got != "hi there" {
		t.Errorf("expected %q, got %q", "hi there", got)
	}
}

func TestExtractTextFromBlockArray(t *testing.T) {
	line := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"a"},{"type":"tool_use","name":"Bash"},{"type":"text","text":"b"}]}}`
	m, err := Parse([]byte(line))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := ExtractText(m); got != "ab" {
		t.Errorf("expected %q, got %q", "ab", got)
	}
}

func TestExtractTextAbsent(t *testing.T) {
	m, err := Parse([]byte(`{"type":"system"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := ExtractText(m); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestExtractToolUseBlocks(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"a"},{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"ls"}}]}}`
	m, err := Parse([]byte(line))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	blocks := ExtractToolUseBlocks(m)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 tool_use block, got %d", len(blocks))
	}
	if blocks[0].Name != "Bash" {
		t.Errorf("expected name Bash, got %q", blocks[0].Name)
	}
}

func TestExtractToolUseBlocksMalformed(t *testing.T) {
	m, err := Parse([]byte(`{"type":"assistant"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if blocks := ExtractToolUseBlocks(m); blocks != nil {
		t.Errorf("expected nil, got %v", blocks)
	}
}

func TestParseRoundTripsRaw(t *testing.T) {
	line := []byte(`{"type":"result","result":{"success":true,"summary":"ok"}}`)
	m, err := Parse(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Type != TypeResult || m.Result == nil || !m.Result.Success {
		t.Fatalf("unexpected parse result: %+v", m)
	}
	if string(m.Raw) != string(line) {
		t.Errorf("raw bytes not preserved")
	}
}
