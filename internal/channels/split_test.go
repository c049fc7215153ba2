package channels

import (
	"strings"
	"testing"
)

func TestSplitResponseShortTextIsOneChunk(t *testing.T) {
	chunks := SplitResponse("hello", 2000, true)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("expected [hello], got %v", chunks)
	}
}

func TestSplitResponseEmptyStringIsOneEmptyChunk(t *testing.T) {
	chunks := SplitResponse("", 2000, true)
	if len(chunks) != 1 || chunks[0] != "" {
		t.Fatalf("expected [\"\"], got %v", chunks)
	}
}

func TestSplitResponseReproducesInputWhenNoFences(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	chunks := SplitResponse(text, 200, true)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 200 {
			t.Errorf("chunk exceeds limit: %d chars", len(c))
		}
	}
	if strings.Join(chunks, "") != text {
		t.Fatal("chunks do not reproduce original text")
	}
}

func TestSplitResponsePrefersParagraphBreak(t *testing.T) {
	para1 := strings.Repeat("a", 90)
	para2 := strings.Repeat("b", 90)
	text := para1 + "\n\n" + para2
	chunks := SplitResponse(text, 95, true)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != para1+"\n\n" {
		t.Errorf("expected first chunk to end at paragraph break, got %q", chunks[0])
	}
}

func TestSplitResponseHardSplitsWithNoBoundary(t *testing.T) {
	text := strings.Repeat("x", 3000)
	chunks := SplitResponse(text, 2000, true)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 2000 {
		t.Errorf("expected hard split at 2000, got chunk of %d", len(chunks[0]))
	}
	if strings.Join(chunks, "") != text {
		t.Fatal("chunks do not reproduce original text")
	}
}

func TestSplitResponseClosesAndReopensCodeFence(t *testing.T) {
	filler := strings.Repeat("x", 1990)
	text := "```go\n" + filler + "\nmore code\n```"
	chunks := SplitResponse(text, 2000, true)
	if len(chunks) < 2 {
		t.Fatalf("expected a split inside the fence, got %d chunks", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "```") {
		t.Errorf("expected first chunk to close the fence, got tail %q", chunks[0][len(chunks[0])-10:])
	}
	if !strings.HasPrefix(chunks[1], "```go\n") {
		t.Errorf("expected second chunk to reopen the fence with its language tag, got head %q", chunks[1][:10])
	}
}

func TestSplitResponseBreaksLongProseAtNewline(t *testing.T) {
	text := strings.Repeat("This is a line of text.\n", 100)
	chunks := SplitResponse(text, 2000, true)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks for 2400 chars, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 2000 {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(c))
		}
	}
	if strings.Join(chunks, "") != text {
		t.Fatal("chunks do not reproduce original text")
	}
	first := chunks[0]
	if !strings.HasSuffix(first, "\n") {
		t.Errorf("expected first chunk to end at a newline, got tail %q", first[len(first)-10:])
	}
	if len(first) < 1500 {
		t.Errorf("expected the break within 500 chars of the limit, first chunk is %d chars", len(first))
	}
}

func TestSplitResponseFenceChunksStayWithinLimit(t *testing.T) {
	text := "```go\n" + strings.Repeat("x", 5000) + "\n```"
	chunks := SplitResponse(text, 2000, true)
	for i, c := range chunks {
		if len(c) > 2000 {
			t.Errorf("chunk %d exceeds limit after fence rewrite: %d chars", i, len(c))
		}
	}
}

func TestSplitResponseFenceParityAcrossManyChunks(t *testing.T) {
	// A fence long enough to split three or more times: every produced
	// chunk must contain a balanced number of ``` markers so no chunk
	// renders with a dangling fence.
	text := "```python\n" + strings.Repeat("line of code\n", 500) + "```"
	chunks := SplitResponse(text, 2000, true)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if strings.Count(c, "```")%2 != 0 {
			t.Errorf("chunk %d has an unmatched fence: %q...", i, c[:40])
		}
	}
}

func TestSplitResponseNoCodeFenceRewriteWhenDisabled(t *testing.T) {
	filler := strings.Repeat("x", 1990)
	text := "```go\n" + filler + "\nmore code\n```"
	chunks := SplitResponse(text, 2000, false)
	if strings.Join(chunks, "") != text {
		t.Fatal("expected chunks without fence rewriting to reproduce the original text exactly")
	}
}
