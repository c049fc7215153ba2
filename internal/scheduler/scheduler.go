// Package scheduler drives time-based job invocations: a periodic check
// loop over per-agent interval and cron schedules, concurrency
// accounting, and per-(agent,schedule) runtime state. Uses a
// per-agent-concurrency model rather than category-based
// (llm/shell/default) semaphores.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fleetops/fleetops/internal/fleetconfig"
)

// RuntimeStatus is a schedule's current state, per spec.md §3.
type RuntimeStatus string

const (
	StatusIdle     RuntimeStatus = "idle"
	StatusRunning  RuntimeStatus = "running"
	StatusDisabled RuntimeStatus = "disabled"
)

// Event names the scheduler emits.
const (
	EventScheduleTriggered = "schedule:triggered"
	EventScheduleSkipped   = "schedule:skipped"
)

// SkipReason explains why a due (or would-be-due) schedule was not
// triggered on a given tick.
type SkipReason string

const (
	SkipDisabled         SkipReason = "disabled"
	SkipAlreadyRunning   SkipReason = "already_running"
	SkipConcurrencyLimit SkipReason = "concurrency_limit"
)

// TriggeredEvent is the payload of EventScheduleTriggered.
type TriggeredEvent struct {
	AgentName    string
	ScheduleName string
	At           time.Time
}

// SkippedEvent is the payload of EventScheduleSkipped.
type SkippedEvent struct {
	AgentName    string
	ScheduleName string
	Reason       SkipReason
}

// Emitter is the narrow event-bus slice the scheduler needs.
type Emitter interface {
	Emit(event string, payload any)
}

// TriggerFunc is invoked for each due (agent, schedule) pair. It must
// return promptly: per spec.md §4.2 a slow job must not block the tick
// that launched it, so implementations are expected to persist the job
// and hand off execution to a separate goroutine before returning.
type TriggerFunc func(ctx context.Context, agentName, scheduleName string) error

type scheduleRuntime struct {
	disabled   bool
	lastRunAt  *time.Time
	activeJobs int
}

// Scheduler owns the resolved agent list (refreshed on reload), a
// checkInterval, per-(agent,schedule) runtime state, and a per-agent
// concurrency semaphore.
type Scheduler struct {
	mu            sync.Mutex
	agents        map[string]fleetconfig.Agent
	agentOrder    []string
	states        map[string]map[string]*scheduleRuntime
	semaphores    map[string]*Semaphore
	checkInterval time.Duration
	trigger       TriggerFunc
	emitter       Emitter

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New builds a Scheduler. checkInterval is the tick period (spec.md's
// default ~1s; tests commonly use a longer interval to avoid flakiness).
func New(checkInterval time.Duration, trigger TriggerFunc, emitter Emitter) *Scheduler {
	if checkInterval <= 0 {
		checkInterval = time.Second
	}
	return &Scheduler{
		agents:        make(map[string]fleetconfig.Agent),
		states:        make(map[string]map[string]*scheduleRuntime),
		semaphores:    make(map[string]*Semaphore),
		checkInterval: checkInterval,
		trigger:       trigger,
		emitter:       emitter,
	}
}

// SetAgents refreshes the agent list, e.g. on config reload. Runtime
// state for (agent,schedule) pairs that still exist is preserved;
// state for removed pairs is dropped; new pairs start idle (or disabled,
// if their schedule's config says enabled:false).
func (s *Scheduler) SetAgents(agents []fleetconfig.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newAgents := make(map[string]fleetconfig.Agent, len(agents))
	order := make([]string, 0, len(agents))
	for _, a := range agents {
		newAgents[a.Name] = a
		order = append(order, a.Name)
	}
	sort.Strings(order)

	newStates := make(map[string]map[string]*scheduleRuntime, len(agents))
	newSemaphores := make(map[string]*Semaphore, len(agents))
	for _, a := range agents {
		perAgent := make(map[string]*scheduleRuntime, len(a.Schedules))
		for name, sched := range a.Schedules {
			if existing, ok := s.states[a.Name]; ok {
				if rt, ok := existing[name]; ok {
					perAgent[name] = rt
					continue
				}
			}
			perAgent[name] = &scheduleRuntime{disabled: !sched.IsEnabled()}
		}
		newStates[a.Name] = perAgent

		maxConcurrent := a.ResolvedMaxConcurrent()
		if existing, ok := s.semaphores[a.Name]; ok && existing.Cap() == maxConcurrent {
			newSemaphores[a.Name] = existing
		} else {
			newSemaphores[a.Name] = NewSemaphore(maxConcurrent)
		}
	}

	s.agents = newAgents
	s.agentOrder = order
	s.states = newStates
	s.semaphores = newSemaphores
}

// Start runs the tick loop until ctx is cancelled or Stop is called. The
// first tick runs immediately, before the first interval elapses.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.stopOnce = sync.Once{}
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	s.tick(time.Now().UTC())

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.tick(now.UTC())
		}
	}
}

// Stop ends the tick loop. Idempotent.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
		}
	})
}

// tick evaluates every (agent, schedule) pair once. Per spec.md §4.9,
// a tick is serialized: the due-set for tick N is fully dispatched
// before tick N+1 begins, since dispatch itself just launches a
// goroutine and returns.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, agentName := range s.agentOrder {
		agent := s.agents[agentName]
		names := make([]string, 0, len(agent.Schedules))
		for name := range agent.Schedules {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			sched := agent.Schedules[name]
			rt := s.states[agentName][name]

			if rt.disabled {
				s.emitSkip(agentName, name, SkipDisabled)
				continue
			}
			if rt.activeJobs > 0 {
				s.emitSkip(agentName, name, SkipAlreadyRunning)
				continue
			}

			due, _, err := dueAt(sched, rt.lastRunAt, now)
			if err != nil {
				slog.Warn("scheduler: invalid schedule, skipping", "agent", agentName, "schedule", name, "error", err)
				continue
			}
			if !due {
				continue
			}

			sem := s.semaphores[agentName]
			if sem != nil && sem.Available() <= 0 {
				s.emitSkip(agentName, name, SkipConcurrencyLimit)
				continue
			}

			// Set last_run_at before launching so a slow job does not cause
			// immediate re-trigger on the next tick.
			rt.lastRunAt = &now
			s.emitTriggered(agentName, name, now)

			// The trigger path calls back into the scheduler (slot
			// acquisition, job-started bookkeeping), so s.mu is not held
			// across it.
			s.mu.Unlock()
			err = s.trigger(context.Background(), agentName, name)
			s.mu.Lock()
			if err != nil {
				slog.Warn("scheduler: trigger failed", "agent", agentName, "schedule", name, "error", err)
			}
		}
	}
}

func (s *Scheduler) emitSkip(agent, schedule string, reason SkipReason) {
	if s.emitter != nil {
		s.emitter.Emit(EventScheduleSkipped, SkippedEvent{AgentName: agent, ScheduleName: schedule, Reason: reason})
	}
}

func (s *Scheduler) emitTriggered(agent, schedule string, at time.Time) {
	if s.emitter != nil {
		s.emitter.Emit(EventScheduleTriggered, TriggeredEvent{AgentName: agent, ScheduleName: schedule, At: at})
	}
}

// TryAcquireAgentSlot attempts to claim one of agent's max_concurrent
// slots, used by the trigger path (scheduler- or manually-invoked alike)
// before launching a job. Returns false if the agent is unknown or at
// capacity.
func (s *Scheduler) TryAcquireAgentSlot(agentName string) bool {
	s.mu.Lock()
	sem := s.semaphores[agentName]
	s.mu.Unlock()
	if sem == nil {
		return false
	}
	return sem.TryAcquire()
}

// ReleaseAgentSlot releases a slot claimed by TryAcquireAgentSlot.
func (s *Scheduler) ReleaseAgentSlot(agentName string) {
	s.mu.Lock()
	sem := s.semaphores[agentName]
	s.mu.Unlock()
	if sem != nil {
		sem.Release()
	}
}

// AgentActiveCount returns the number of slots currently in use and the
// agent's configured max_concurrent.
func (s *Scheduler) AgentActiveCount(agentName string) (active, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem := s.semaphores[agentName]
	if sem == nil {
		return 0, 0
	}
	return sem.Cap() - sem.Available(), sem.Cap()
}

// NotifyScheduleJobStarted marks schedule as having an in-flight job, so
// the next tick treats it as already_running rather than due.
func (s *Scheduler) NotifyScheduleJobStarted(agentName, scheduleName string) {
	if scheduleName == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt := s.states[agentName][scheduleName]; rt != nil {
		rt.activeJobs++
	}
}

// NotifyScheduleJobFinished is the counterpart to
// NotifyScheduleJobStarted, called once the job reaches a terminal
// status.
func (s *Scheduler) NotifyScheduleJobFinished(agentName, scheduleName string) {
	if scheduleName == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt := s.states[agentName][scheduleName]; rt != nil && rt.activeJobs > 0 {
		rt.activeJobs--
	}
}

// ScheduleSnapshot is a point-in-time view of one schedule's runtime
// state, for getSchedules()/getSchedule() introspection.
type ScheduleSnapshot struct {
	AgentName    string
	ScheduleName string
	Status       RuntimeStatus
	LastRunAt    *time.Time
	NextRunAt    *time.Time
}

// Snapshot returns the runtime state of every (agent, schedule) pair.
func (s *Scheduler) Snapshot() []ScheduleSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ScheduleSnapshot
	for _, agentName := range s.agentOrder {
		agent := s.agents[agentName]
		names := make([]string, 0, len(agent.Schedules))
		for name := range agent.Schedules {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rt := s.states[agentName][name]
			status := StatusIdle
			switch {
			case rt.disabled:
				status = StatusDisabled
			case rt.activeJobs > 0:
				status = StatusRunning
			}
			snap := ScheduleSnapshot{AgentName: agentName, ScheduleName: name, Status: status, LastRunAt: rt.lastRunAt}
			if rt.lastRunAt != nil {
				if _, next, err := dueAt(agent.Schedules[name], rt.lastRunAt, *rt.lastRunAt); err == nil {
					snap.NextRunAt = next
				}
			}
			out = append(out, snap)
		}
	}
	return out
}

// EnableSchedule clears the disabled flag on (agent, schedule). Returns
// false if the pair is unknown.
func (s *Scheduler) EnableSchedule(agentName, scheduleName string) bool {
	return s.setDisabled(agentName, scheduleName, false)
}

// DisableSchedule sets the disabled flag on (agent, schedule).
func (s *Scheduler) DisableSchedule(agentName, scheduleName string) bool {
	return s.setDisabled(agentName, scheduleName, true)
}

func (s *Scheduler) setDisabled(agentName, scheduleName string, disabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt := s.states[agentName][scheduleName]
	if rt == nil {
		return false
	}
	rt.disabled = disabled
	return true
}
