package fleet

import (
	"context"
	"time"

	"github.com/fleetops/fleetops/internal/job"
	"github.com/fleetops/fleetops/internal/sdkmessage"
)

// defaultPrompt is used when neither the caller nor the schedule supply
// one, per spec.md §4.3 step 2.
const defaultPrompt = "Execute your configured task"

// TriggerOptions carries the per-call inputs to Trigger, per spec.md
// §4.1's trigger(agent, schedule?, {prompt?, bypassConcurrencyLimit?,
// onMessage?, resume?}).
type TriggerOptions struct {
	Prompt                 string
	Resume                 string
	BypassConcurrencyLimit bool
	OnMessage              func(ctx context.Context, msg sdkmessage.Message)

	// TriggerType overrides the trigger type, which defaults to manual
	// whether or not a schedule name is given. The scheduler's own
	// trigger path sets job.TriggerSchedule; chat managers set
	// job.TriggerChat.
	TriggerType job.TriggerType
	// ForkedFrom, if set, records the job this trigger continues from
	// (the new job's forked_from) and emits a job:forked event in
	// addition to job:created. Resume is passed on either way.
	ForkedFrom string
}

// TriggerResult is returned as soon as the job is persisted and
// job:created is emitted; it does not wait for completion.
type TriggerResult struct {
	JobID        string
	AgentName    string
	ScheduleName string
	Prompt       string
	StartedAt    time.Time
}
