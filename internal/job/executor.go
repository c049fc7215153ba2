package job

import (
	"context"
	"time"

	"github.com/fleetops/fleetops/internal/sdkmessage"
)

// Emitter is the narrow slice of the fleet event bus the executor needs.
// Keeping it as a small local interface (rather than importing the fleet
// package's bus directly) avoids an import cycle, since internal/fleet
// imports internal/job to drive execution.
type Emitter interface {
	Emit(event string, payload any)
}

// Event names the executor emits, mirroring spec.md §4.1's job lifecycle
// events.
const (
	EventJobOutput    = "job:output"
	EventJobCompleted = "job:completed"
	EventJobFailed    = "job:failed"
	EventJobCancelled = "job:cancelled"
)

// JobOutputEvent is the payload of EventJobOutput.
type JobOutputEvent struct {
	JobID   string
	Message sdkmessage.Message
}

// JobTerminalEvent is the payload of EventJobCompleted/Failed/Cancelled.
type JobTerminalEvent struct {
	Job *Job
}

// RunOptions carries the per-invocation inputs the executor needs beyond
// the job record itself.
type RunOptions struct {
	WorkDir string
	Model   string
	Runtime string
	Resume  string

	// OnMessage, if set, is invoked synchronously for every message
	// appended to output, in order, before the next message is read. Used
	// by chat connectors to stream replies as they arrive.
	OnMessage func(ctx context.Context, msg sdkmessage.Message)

	// Release, if set, is called exactly once, immediately before the
	// terminal event is emitted, so the caller can free a concurrency
	// slot before observers see the job end.
	Release func()
}

// Executor drives one job's invocation end to end: starts the query
// stream, persists and emits each message, and transitions the job
// through running to a terminal status. The LLM engine itself is an
// out-of-scope collaborator here (sdkmessage.Query).
type Executor struct {
	store   *Store
	query   sdkmessage.Query
	emitter Emitter
}

// NewExecutor builds an Executor over store, invoking query and emitting
// lifecycle events through emitter.
func NewExecutor(store *Store, query sdkmessage.Query, emitter Emitter) *Executor {
	return &Executor{store: store, query: query, emitter: emitter}
}

// Run executes job synchronously, blocking until the job reaches a
// terminal status or ctx is cancelled. job.Status must be StatusPending
// on entry; Run marks it Running itself.
func (e *Executor) Run(ctx context.Context, j *Job, opts RunOptions) error {
	j.Status = StatusRunning
	if err := e.store.SaveMetadata(j); err != nil {
		if opts.Release != nil {
			opts.Release()
		}
		return err
	}

	stream, err := e.query.Start(ctx, sdkmessage.QueryOptions{
		Prompt:  j.Prompt,
		WorkDir: opts.WorkDir,
		Model:   opts.Model,
		Runtime: opts.Runtime,
		Resume:  opts.Resume,
	})
	if err != nil {
		return e.finish(j, StatusFailed, ExitError, err.Error(), opts.Release)
	}
	defer stream.Close()

	for {
		msg, ok, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return e.finish(j, StatusCancelled, ExitCancelled, "", opts.Release)
			}
			return e.finish(j, StatusFailed, ExitError, err.Error(), opts.Release)
		}
		if !ok {
			break
		}

		if msg.SessionID != "" && msg.SessionID != j.SessionID {
			j.SessionID = msg.SessionID
			// Persist immediately so a fork or chat resume started while
			// this job is still streaming can see the session id.
			if err := e.store.SaveMetadata(j); err != nil {
				return e.finish(j, StatusFailed, ExitError, err.Error(), opts.Release)
			}
		}
		if err := e.store.AppendOutput(j.ID, msg); err != nil {
			return e.finish(j, StatusFailed, ExitError, err.Error(), opts.Release)
		}
		if e.emitter != nil {
			e.emitter.Emit(EventJobOutput, JobOutputEvent{JobID: j.ID, Message: msg})
		}
		if opts.OnMessage != nil {
			opts.OnMessage(ctx, msg)
		}

		if msg.Type == sdkmessage.TypeError {
			errText := ""
			if msg.Error != nil {
				errText = msg.Error.Message
			}
			return e.finish(j, StatusFailed, ExitError, errText, opts.Release)
		}
		if ctx.Err() != nil {
			return e.finish(j, StatusCancelled, ExitCancelled, "", opts.Release)
		}
	}

	return e.finish(j, StatusCompleted, ExitSuccess, "", opts.Release)
}

func (e *Executor) finish(j *Job, status Status, reason ExitReason, errMsg string, release func()) error {
	now := time.Now().UTC()
	j.Status = status
	j.ExitReason = reason
	j.ErrorMessage = errMsg
	j.FinishedAt = &now

	saveErr := e.store.SaveMetadata(j)

	if release != nil {
		release()
	}
	if saveErr != nil {
		return saveErr
	}

	if e.emitter != nil {
		event := EventJobCompleted
		switch status {
		case StatusFailed:
			event = EventJobFailed
		case StatusCancelled:
			event = EventJobCancelled
		}
		e.emitter.Emit(event, JobTerminalEvent{Job: j.Clone()})
	}
	return nil
}
