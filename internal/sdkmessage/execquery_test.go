package sdkmessage

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fixture, unix only")
	}
	path := filepath.Join(t.TempDir(), "fake-sdk")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func drain(t *testing.T, s Stream) []Message {
	t.Helper()
	var out []Message
	for {
		msg, ok, err := s.Next(context.Background())
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func TestExecQueryStreamsStdoutLines(t *testing.T) {
	bin := writeScript(t, `echo '{"type":"assistant","session_id":"s1","message":{"role":"assistant","content":"hi"}}'
echo '{"type":"result","result":{"success":true,"summary":"done"}}'
`)
	q := &ExecQuery{Command: map[string]string{"sdk": bin}}
	stream, err := q.Start(context.Background(), QueryOptions{Prompt: "do it", Model: "m"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stream.Close()

	msgs := drain(t, stream)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Type != TypeAssistant || msgs[0].SessionID != "s1" {
		t.Errorf("unexpected first message %+v", msgs[0])
	}
	if msgs[1].Type != TypeResult || msgs[1].Result == nil || !msgs[1].Result.Success {
		t.Errorf("unexpected second message %+v", msgs[1])
	}
}

func TestExecQuerySkipsMalformedLines(t *testing.T) {
	bin := writeScript(t, `echo 'this is not json'
echo '{"type":"result","result":{"success":true}}'
`)
	q := &ExecQuery{Command: map[string]string{"sdk": bin}}
	stream, err := q.Start(context.Background(), QueryOptions{Prompt: "x"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stream.Close()

	msgs := drain(t, stream)
	if len(msgs) != 1 || msgs[0].Type != TypeResult {
		t.Fatalf("expected the malformed line skipped, got %+v", msgs)
	}
}

func TestExecQueryUnknownRuntimeFails(t *testing.T) {
	q := &ExecQuery{Command: map[string]string{"sdk": "/bin/true"}}
	if _, err := q.Start(context.Background(), QueryOptions{Runtime: "no-such-runtime"}); err == nil {
		t.Fatal("expected an error for an unconfigured runtime")
	}
}

func TestExecQueryRuntimeSelectsBinary(t *testing.T) {
	sdkBin := writeScript(t, `echo '{"type":"result","result":{"success":true,"summary":"sdk"}}'
`)
	otherBin := writeScript(t, `echo '{"type":"result","result":{"success":true,"summary":"other"}}'
`)
	q := &ExecQuery{Command: map[string]string{"sdk": sdkBin, "other": otherBin}}

	stream, err := q.Start(context.Background(), QueryOptions{Runtime: "other"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stream.Close()

	msgs := drain(t, stream)
	if len(msgs) != 1 || msgs[0].Result == nil || msgs[0].Result.Summary != "other" {
		t.Fatalf("expected the 'other' runtime's binary to run, got %+v", msgs)
	}
}
