package channels

import (
	"strings"
	"testing"
	"time"

	"github.com/fleetops/fleetops/internal/sdkmessage"
)

func toolUse(name string, input string) sdkmessage.ContentBlock {
	return sdkmessage.ContentBlock{Type: "tool_use", Name: name, Input: []byte(input)}
}

func TestGetToolInputSummaryBash(t *testing.T) {
	summary := getToolInputSummary(toolUse("Bash", `{"command":"ls -la"}`))
	if summary != "ls -la" {
		t.Errorf("unexpected summary %q", summary)
	}
}

func TestGetToolInputSummaryUnknownToolIsEmpty(t *testing.T) {
	summary := getToolInputSummary(toolUse("SomeOtherTool", `{"command":"ls -la"}`))
	if summary != "" {
		t.Errorf("expected empty summary, got %q", summary)
	}
}

func TestGetToolInputSummaryMalformedInputIsEmpty(t *testing.T) {
	summary := getToolInputSummary(toolUse("Bash", `not json`))
	if summary != "" {
		t.Errorf("expected empty summary, got %q", summary)
	}
}

func TestGetToolInputSummaryTruncatesLongInput(t *testing.T) {
	long := strings.Repeat("a", 300)
	summary := getToolInputSummary(toolUse("Bash", `{"command":"`+long+`"}`))
	if len(summary) != inputSummaryMaxChars {
		t.Fatalf("expected summary truncated to %d chars, got %d", inputSummaryMaxChars, len(summary))
	}
	if !strings.HasSuffix(summary, "…") {
		t.Errorf("expected truncated summary to end with an ellipsis, got %q", summary[len(summary)-5:])
	}
}

func TestBuildToolEmbedSuccess(t *testing.T) {
	use := toolUse("Bash", `{"command":"echo hi"}`)
	result := &sdkmessage.ContentBlock{Type: "tool_result", Content: "hi\n", IsError: false}

	e := BuildToolEmbed(use, result, 1200*time.Millisecond, 0)
	if e.Title != "Bash" {
		t.Errorf("unexpected title %q", e.Title)
	}
	if e.Color != ColorSuccess {
		t.Errorf("expected success color, got %#x", e.Color)
	}
	if e.Description != "echo hi" {
		t.Errorf("unexpected description %q", e.Description)
	}

	var haveDuration, haveResult bool
	for _, f := range e.Fields {
		switch f.Name {
		case "Duration":
			haveDuration = true
			if f.Value != "1.2s" {
				t.Errorf("unexpected duration %q", f.Value)
			}
		case "Result":
			haveResult = true
			if !strings.Contains(f.Value, "hi") {
				t.Errorf("expected result field to contain output, got %q", f.Value)
			}
		}
	}
	if !haveDuration || !haveResult {
		t.Fatalf("expected Duration and Result fields, got %+v", e.Fields)
	}
}

func TestBuildToolEmbedError(t *testing.T) {
	use := toolUse("Bash", `{"command":"false"}`)
	result := &sdkmessage.ContentBlock{Type: "tool_result", Content: "command failed", IsError: true}

	e := BuildToolEmbed(use, result, 0, 0)
	if e.Color != ColorError {
		t.Errorf("expected error color, got %#x", e.Color)
	}
	var haveError bool
	for _, f := range e.Fields {
		if f.Name == "Error" {
			haveError = true
		}
		if f.Name == "Result" {
			t.Error("expected no Result field on an error result")
		}
	}
	if !haveError {
		t.Fatal("expected an Error field")
	}
}

func TestBuildToolEmbedNoResultYet(t *testing.T) {
	use := toolUse("Bash", `{"command":"sleep 1"}`)
	e := BuildToolEmbed(use, nil, 0, 0)
	if e.Color != ColorSuccess {
		t.Errorf("expected default success color pending a result, got %#x", e.Color)
	}
	if len(e.Fields) != 0 {
		t.Errorf("expected no fields before a result arrives, got %+v", e.Fields)
	}
}

func TestBuildToolEmbedRespectsMaxOutputChars(t *testing.T) {
	use := toolUse("Bash", `{"command":"yes"}`)
	result := &sdkmessage.ContentBlock{Type: "tool_result", Content: strings.Repeat("y", 2000)}

	e := BuildToolEmbed(use, result, 0, 50)
	for _, f := range e.Fields {
		if f.Name == "Result" && len(f.Value) > discordFieldValueCap {
			t.Errorf("result field exceeds discord cap: %d chars", len(f.Value))
		}
	}
}

func TestBuildToolEmbedResultFieldNeverExceedsDiscordCapNearLimit(t *testing.T) {
	use := toolUse("Bash", `{"command":"yes"}`)
	result := &sdkmessage.ContentBlock{Type: "tool_result", Content: strings.Repeat("y", 5000)}

	for _, maxOutputChars := range []int{1024, 1020, 1000, discordFieldValueCap + 500} {
		e := BuildToolEmbed(use, result, 0, maxOutputChars)
		for _, f := range e.Fields {
			if f.Name == "Result" && len(f.Value) > discordFieldValueCap {
				t.Errorf("maxOutputChars=%d: result field is %d chars, exceeds discord cap of %d", maxOutputChars, len(f.Value), discordFieldValueCap)
			}
		}
	}
}

func TestHumanizeBytes(t *testing.T) {
	if got := humanizeBytes(42); got != "42" {
		t.Errorf("unexpected %q", got)
	}
	if got := humanizeBytes(1500); got != "1.5k" {
		t.Errorf("unexpected %q", got)
	}
}
