package fleet

import (
	"time"

	"github.com/fleetops/fleetops/internal/fleetconfig"
	"github.com/fleetops/fleetops/internal/job"
)

// Event names emitted directly by the FleetManager. The scheduler emits
// schedule:triggered/schedule:skipped and the job executor emits
// job:output/job:completed/job:failed/job:cancelled onto the same Bus;
// see internal/scheduler and internal/job for those constants. Chat
// managers emit their own discord:*/slack:* events onto this Bus too.
const (
	EventInitialized    = "initialized"
	EventStarted        = "started"
	EventStopped        = "stopped"
	EventConfigReloaded = "config:reloaded"
	EventJobCreated     = "job:created"
	EventJobForked      = "job:forked"
)

// InitializedEvent is the payload of EventInitialized.
type InitializedEvent struct {
	AgentCount int
}

// StartedEvent is the payload of EventStarted.
type StartedEvent struct {
	At time.Time
}

// StoppedEvent is the payload of EventStopped.
type StoppedEvent struct{}

// ConfigReloadedEvent is the payload of EventConfigReloaded, per
// spec.md §4.5 step 5.
type ConfigReloadedEvent struct {
	AgentCount int
	AgentNames []string
	ConfigPath string
	Changes    []fleetconfig.Change
	Timestamp  time.Time
}

// JobCreatedEvent is the payload of EventJobCreated. CorrelationID is a
// trace id minted once per trigger call, letting a subscriber stitch
// together the created/forked pair for the same invocation without
// depending on job id formatting.
type JobCreatedEvent struct {
	Job           *job.Job
	CorrelationID string
}

// JobForkedEvent is the payload of EventJobForked, emitted alongside
// EventJobCreated when a trigger carries ForkedFrom.
type JobForkedEvent struct {
	Job           *job.Job
	OriginalJobID string
	CorrelationID string
}
