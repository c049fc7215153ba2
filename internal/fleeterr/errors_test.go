package fleeterr

import (
	"errors"
	"testing"
)

func TestAgentNotFoundErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &AgentNotFoundError{AgentName: "x", AvailableAgents: []string{"a", "b"}, Cause: cause}
	if err.Code() != CodeAgentNotFound {
		t.Errorf("unexpected code %s", err.Code())
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find wrapped cause")
	}
}

func TestConcurrencyLimitErrorMessage(t *testing.T) {
	err := &ConcurrencyLimitError{AgentName: "agent-1", CurrentJobs: 2, Limit: 2}
	if got := err.Error(); got == "" {
		t.Errorf("expected non-empty error string")
	}
	if err.Code() != CodeConcurrencyLimit {
		t.Errorf("unexpected code %s", err.Code())
	}
}

func TestJobCancelErrorReason(t *testing.T) {
	err := &JobCancelError{JobID: "job-2026-01-01-abc123", Reason: CancelReasonNotRunning}
	if err.Reason != CancelReasonNotRunning {
		t.Errorf("unexpected reason %s", err.Reason)
	}
}
