package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fleetops/fleetops/internal/sdkmessage"
)

type recordingEmitter struct {
	events []string
}

func (r *recordingEmitter) Emit(event string, payload any) {
	r.events = append(r.events, event)
}

func newPendingJob(id string) *Job {
	return &Job{ID: id, AgentName: "agent-1", TriggerType: TriggerManual, Prompt: "do the thing", Status: StatusPending, StartedAt: time.Now().UTC()}
}

func TestExecutorRunCompletesSuccessfully(t *testing.T) {
	s := newTestStore(t)
	q := &sdkmessage.FakeQuery{Scripts: []sdkmessage.FakeScript{{Messages: []sdkmessage.Message{
		sdkmessage.TextMessage("sess-1", "hi"),
		sdkmessage.ResultMessage(true, "done"),
	}}}}
	emitter := &recordingEmitter{}
	exec := NewExecutor(s, q, emitter)

	j := newPendingJob("job-2026-07-31-abc123")
	released := false
	err := exec.Run(context.Background(), j, RunOptions{Release: func() { released = true }})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if j.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", j.Status)
	}
	if j.SessionID != "sess-1" {
		t.Errorf("expected session id propagated, got %q", j.SessionID)
	}
	if !released {
		t.Error("expected release to be called")
	}

	out, err := s.ReadOutput(j.ID)
	if err != nil || len(out) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d err %v", len(out), err)
	}

	found := false
	for _, e := range emitter.events {
		if e == EventJobCompleted {
			found = true
		}
	}
	if !found {
		t.Errorf("expected job:completed event, got %v", emitter.events)
	}
}

func TestExecutorRunFailsOnStreamError(t *testing.T) {
	s := newTestStore(t)
	q := &sdkmessage.FakeQuery{Scripts: []sdkmessage.FakeScript{{StreamErr: errors.New("boom")}}}
	emitter := &recordingEmitter{}
	exec := NewExecutor(s, q, emitter)

	j := newPendingJob("job-2026-07-31-def456")
	if err := exec.Run(context.Background(), j, RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if j.Status != StatusFailed {
		t.Errorf("expected failed, got %s", j.Status)
	}
	if j.ErrorMessage != "boom" {
		t.Errorf("expected error message propagated, got %q", j.ErrorMessage)
	}
}

func TestExecutorRunFailsOnStartError(t *testing.T) {
	s := newTestStore(t)
	q := &sdkmessage.FakeQuery{Scripts: []sdkmessage.FakeScript{{StartErr: errors.New("no capacity")}}}
	exec := NewExecutor(s, q, nil)

	j := newPendingJob("job-2026-07-31-ghi789")
	if err := exec.Run(context.Background(), j, RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if j.Status != StatusFailed || j.ExitReason != ExitError {
		t.Errorf("unexpected terminal state: %+v", j)
	}
}

func TestExecutorRunFailsOnInStreamErrorMessage(t *testing.T) {
	s := newTestStore(t)
	q := &sdkmessage.FakeQuery{Scripts: []sdkmessage.FakeScript{{Messages: []sdkmessage.Message{
		sdkmessage.TextMessage("sess-1", "hi"),
		sdkmessage.ErrorMessage("agent crashed"),
	}}}}
	exec := NewExecutor(s, q, nil)

	j := newPendingJob("job-2026-07-31-jkl012")
	if err := exec.Run(context.Background(), j, RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if j.Status != StatusFailed || j.ErrorMessage != "agent crashed" {
		t.Errorf("unexpected terminal state: %+v", j)
	}
}

func TestExecutorRunCancelled(t *testing.T) {
	s := newTestStore(t)
	q := &sdkmessage.FakeQuery{}
	exec := NewExecutor(s, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := newPendingJob("job-2026-07-31-mno345")
	if err := exec.Run(ctx, j, RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if j.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", j.Status)
	}
}

func TestExecutorOnMessageCallback(t *testing.T) {
	s := newTestStore(t)
	q := &sdkmessage.FakeQuery{Scripts: []sdkmessage.FakeScript{{Messages: []sdkmessage.Message{
		sdkmessage.TextMessage("sess-1", "hi"),
		sdkmessage.ResultMessage(true, "done"),
	}}}}
	exec := NewExecutor(s, q, nil)

	var seen []string
	j := newPendingJob("job-2026-07-31-pqr678")
	opts := RunOptions{OnMessage: func(ctx context.Context, msg sdkmessage.Message) {
		seen = append(seen, msg.Type)
	}}
	if err := exec.Run(context.Background(), j, opts); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != 2 || seen[0] != sdkmessage.TypeAssistant || seen[1] != sdkmessage.TypeResult {
		t.Errorf("unexpected callback sequence: %v", seen)
	}
}
