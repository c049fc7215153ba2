package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetops/fleetops/internal/fleetconfig"
	"github.com/fleetops/fleetops/internal/fleeterr"
	"github.com/fleetops/fleetops/internal/job"
	"github.com/fleetops/fleetops/internal/scheduler"
	"github.com/fleetops/fleetops/internal/sdkmessage"
)

// StopOptions governs graceful shutdown, per spec.md §4.1's stop(options?).
type StopOptions struct {
	// Timeout bounds how long Stop waits for in-flight jobs to finish on
	// their own before acting on CancelOnTimeout. Zero means wait
	// forever.
	Timeout time.Duration
	// CancelOnTimeout, if true, cancels every still-running job's context
	// once Timeout elapses instead of returning a ShutdownError.
	CancelOnTimeout bool
}

// Option configures a FleetManager at construction time.
type Option func(*FleetManager)

// WithCheckInterval overrides the scheduler's tick period.
func WithCheckInterval(d time.Duration) Option {
	return func(m *FleetManager) { m.checkInterval = d }
}

// WithChatManagers injects the chat connector managers (Discord, Slack,
// ...) the FleetManager starts and stops alongside its own lifecycle.
// Keeping this as an injected slice of the Context-facing ChatManager
// interface, rather than a concrete dependency, is what lets
// internal/channels/discord and internal/channels/slack import
// internal/fleet without internal/fleet importing them back.
func WithChatManagers(managers ...ChatManager) Option {
	return func(m *FleetManager) { m.chatManagers = append(m.chatManagers, managers...) }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *FleetManager) { m.logger = logger }
}

// activeJob tracks one in-flight invocation for Stop's graceful-drain
// bookkeeping.
type activeJob struct {
	jobID        string
	agentName    string
	scheduleName string
	cancel       context.CancelFunc
}

// FleetManager is the control-plane root described by spec.md §4.1: it
// owns the resolved configuration, the job store/manager/executor, the
// scheduler, the event bus, and the injected chat managers, and drives
// the uninitialized -> initialized -> running -> stopped state machine
// (with an absorbing error state reachable from any of those).
type FleetManager struct {
	configPath    string
	query         sdkmessage.Query
	chatManagers  []ChatManager
	checkInterval time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	state     State
	config    *fleetconfig.FleetConfig
	startedAt time.Time

	store     *job.Store
	jobs      *job.Manager
	executor  *job.Executor
	scheduler *scheduler.Scheduler
	bus       *Bus

	active map[string]*activeJob
}

// New constructs a FleetManager for the fleet YAML at configPath,
// invoking agent runs through query. Initialize must be called before
// Start.
func New(configPath string, query sdkmessage.Query, opts ...Option) *FleetManager {
	m := &FleetManager{
		configPath:    configPath,
		query:         query,
		checkInterval: time.Second,
		logger:        slog.Default(),
		state:         StateUninitialized,
		bus:           NewBus(),
		active:        make(map[string]*activeJob),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the currently resolved fleet configuration. Part of the
// Context interface.
func (m *FleetManager) Config() *fleetconfig.FleetConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// StateDir returns the resolved fleet state directory. Part of the
// Context interface.
func (m *FleetManager) StateDir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		return ""
	}
	return m.config.StateDir
}

// Logger returns the FleetManager's logger. Part of the Context
// interface.
func (m *FleetManager) Logger() *slog.Logger {
	return m.logger
}

// Emitter returns the shared event bus. Part of the Context interface.
func (m *FleetManager) Emitter() *Bus {
	return m.bus
}

func (m *FleetManager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// State reports the current lifecycle state.
func (m *FleetManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *FleetManager) requireState(op string, want State) error {
	m.mu.Lock()
	cur := m.state
	m.mu.Unlock()
	if cur != want {
		return &fleeterr.InvalidStateError{Operation: op, CurrentState: string(cur), ExpectedState: string(want)}
	}
	return nil
}

// Initialize loads and validates the fleet configuration, prepares the
// state directory, and builds the job store/manager/executor and
// scheduler, per spec.md §4.1 step 1. Must be called exactly once, from
// StateUninitialized.
func (m *FleetManager) Initialize(ctx context.Context) error {
	if err := m.requireState("initialize", StateUninitialized); err != nil {
		return err
	}

	cfg, err := fleetconfig.Load(m.configPath)
	if err != nil {
		m.setState(StateError)
		return err
	}

	store := job.NewStore(cfg.StateDir)
	if err := store.EnsureDirs(); err != nil {
		m.setState(StateError)
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.store = store
	m.jobs = job.NewManager(store)
	m.executor = job.NewExecutor(store, m.query, m.bus)
	m.scheduler = scheduler.New(m.checkInterval, m.schedulerTrigger, m.bus)
	m.scheduler.SetAgents(cfg.Agents)
	m.mu.Unlock()

	for _, cm := range m.chatManagers {
		if err := cm.Initialize(m); err != nil {
			m.setState(StateError)
			return fmt.Errorf("fleet: initialize chat manager %s: %w", cm.Name(), err)
		}
	}

	m.setState(StateInitialized)
	m.bus.Emit(EventInitialized, InitializedEvent{AgentCount: len(cfg.Agents)})
	return nil
}

// Start launches the scheduler tick loop and every chat manager, per
// spec.md §4.1 step 2. Must be called from StateInitialized.
func (m *FleetManager) Start(ctx context.Context) error {
	if err := m.requireState("start", StateInitialized); err != nil {
		return err
	}

	m.mu.Lock()
	sched := m.scheduler
	m.mu.Unlock()
	sched.Start(ctx)

	for _, cm := range m.chatManagers {
		if err := cm.Start(ctx); err != nil {
			m.logger.Error("fleet: chat manager failed to start", "manager", cm.Name(), "error", err)
		}
	}

	now := time.Now().UTC()
	m.mu.Lock()
	m.startedAt = now
	m.mu.Unlock()

	m.setState(StateRunning)
	m.bus.Emit(EventStarted, StartedEvent{At: now})
	return nil
}

// StartedAt returns the time Start last transitioned the manager to
// StateRunning, or the zero time if it has never run. Part of
// GetFleetStatus's uptime computation.
func (m *FleetManager) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt
}

// Stop halts the scheduler, disconnects chat managers, and waits for
// in-flight jobs to finish (or, per opts, cancels them after a timeout),
// per spec.md §4.1 step 3 and §4.8. Valid from StateRunning; called from
// StateInitialized or StateStopped it is a no-op that still ends in
// StateStopped, per the op table's "initialized (no-op) / stopped
// (no-op)" post-state.
func (m *FleetManager) Stop(ctx context.Context, opts StopOptions) error {
	m.mu.Lock()
	cur := m.state
	m.mu.Unlock()

	if cur == StateStopped {
		return nil
	}
	if cur == StateInitialized {
		m.setState(StateStopped)
		m.bus.Emit(EventStopped, StoppedEvent{})
		return nil
	}
	if err := m.requireState("stop", StateRunning); err != nil {
		return err
	}

	m.mu.Lock()
	sched := m.scheduler
	m.mu.Unlock()
	sched.Stop()

	for _, cm := range m.chatManagers {
		if err := cm.Stop(ctx); err != nil {
			m.logger.Error("fleet: chat manager failed to stop cleanly", "manager", cm.Name(), "error", err)
		}
	}

	if err := m.drainActiveJobs(opts); err != nil {
		m.setState(StateError)
		return err
	}

	m.setState(StateStopped)
	m.bus.Emit(EventStopped, StoppedEvent{})
	return nil
}

func (m *FleetManager) drainActiveJobs(opts StopOptions) error {
	deadline := make(<-chan time.Time)
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if m.activeCount() == 0 {
			return nil
		}
		select {
		case <-deadline:
			if opts.CancelOnTimeout {
				m.cancelActiveJobs()
				return nil
			}
			return &fleeterr.ShutdownError{TimedOut: true}
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (m *FleetManager) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *FleetManager) cancelActiveJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, aj := range m.active {
		aj.cancel()
	}
}

func (m *FleetManager) trackActive(jobID, agentName, scheduleName string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[jobID] = &activeJob{jobID: jobID, agentName: agentName, scheduleName: scheduleName, cancel: cancel}
}

func (m *FleetManager) untrackActive(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, jobID)
}

// Reload re-parses the fleet configuration, diffs it against the
// current one, applies the result to the scheduler, and emits
// config:reloaded, per spec.md §4.5. Valid from StateInitialized,
// StateRunning, or StateStopped; agent identity is name-keyed so
// added/removed/modified agents take effect without restarting
// unaffected ones.
func (m *FleetManager) Reload(ctx context.Context) error {
	m.mu.Lock()
	cur := m.state
	m.mu.Unlock()
	if cur != StateInitialized && cur != StateRunning && cur != StateStopped {
		return &fleeterr.InvalidStateError{Operation: "reload", CurrentState: string(cur), ExpectedState: "initialized, running, or stopped"}
	}

	newCfg, err := fleetconfig.Load(m.configPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	oldCfg := m.config
	changes := fleetconfig.Diff(oldCfg, newCfg)
	m.config = newCfg
	sched := m.scheduler
	m.mu.Unlock()

	sched.SetAgents(newCfg.Agents)

	m.bus.Emit(EventConfigReloaded, ConfigReloadedEvent{
		AgentCount: len(newCfg.Agents),
		AgentNames: newCfg.AgentNames(),
		ConfigPath: newCfg.ConfigPath,
		Changes:    changes,
		Timestamp:  time.Now().UTC(),
	})
	return nil
}

// Trigger starts one job for agentName, as either a manual invocation
// (scheduleName == "") or on behalf of a named schedule, per spec.md
// §4.1/§4.3. It persists the job as pending, emits job:created, and
// returns without waiting for the run to start or finish; callers that
// need the result should observe job:completed/failed/cancelled on the
// event bus, or poll GetJob.
func (m *FleetManager) Trigger(ctx context.Context, agentName, scheduleName string, opts TriggerOptions) (TriggerResult, error) {
	m.mu.Lock()
	cfg := m.config
	sched := m.scheduler
	store := m.store
	executor := m.executor
	m.mu.Unlock()

	if cfg == nil {
		return TriggerResult{}, &fleeterr.InvalidStateError{Operation: "trigger", CurrentState: string(m.State()), ExpectedState: "initialized"}
	}

	agent, ok := cfg.AgentByName(agentName)
	if !ok {
		return TriggerResult{}, &fleeterr.AgentNotFoundError{AgentName: agentName, AvailableAgents: cfg.AgentNames()}
	}

	var sc fleetconfig.Schedule
	if scheduleName != "" {
		sc, ok = agent.Schedules[scheduleName]
		if !ok {
			names := make([]string, 0, len(agent.Schedules))
			for n := range agent.Schedules {
				names = append(names, n)
			}
			return TriggerResult{}, &fleeterr.ScheduleNotFoundError{AgentName: agentName, ScheduleName: scheduleName, AvailableSchedules: names}
		}
	}

	if !opts.BypassConcurrencyLimit {
		if !sched.TryAcquireAgentSlot(agentName) {
			active, limit := sched.AgentActiveCount(agentName)
			return TriggerResult{}, &fleeterr.ConcurrencyLimitError{AgentName: agentName, CurrentJobs: active, Limit: limit}
		}
	}

	now := time.Now().UTC()
	id, err := job.GenerateID(now, store.Exists)
	if err != nil {
		if !opts.BypassConcurrencyLimit {
			sched.ReleaseAgentSlot(agentName)
		}
		return TriggerResult{}, err
	}

	prompt := opts.Prompt
	if prompt == "" {
		prompt = sc.Prompt
	}
	if prompt == "" {
		prompt = defaultPrompt
	}

	// A caller-supplied schedule name selects the schedule's prompt but
	// does not make this a scheduled invocation; only the scheduler's
	// own trigger path stamps TriggerSchedule (via opts.TriggerType).
	triggerType := opts.TriggerType
	if triggerType == "" {
		triggerType = job.TriggerManual
	}

	j := &job.Job{
		ID:           id,
		AgentName:    agentName,
		ScheduleName: scheduleName,
		TriggerType:  triggerType,
		Prompt:       prompt,
		Status:       job.StatusPending,
		StartedAt:    now,
		ForkedFrom:   opts.ForkedFrom,
	}
	if err := store.SaveMetadata(j); err != nil {
		if !opts.BypassConcurrencyLimit {
			sched.ReleaseAgentSlot(agentName)
		}
		return TriggerResult{}, err
	}

	correlationID := uuid.NewString()
	m.bus.Emit(EventJobCreated, JobCreatedEvent{Job: j.Clone(), CorrelationID: correlationID})
	if opts.ForkedFrom != "" {
		m.bus.Emit(EventJobForked, JobForkedEvent{Job: j.Clone(), OriginalJobID: opts.ForkedFrom, CorrelationID: correlationID})
	}

	sched.NotifyScheduleJobStarted(agentName, scheduleName)

	runCtx, cancel := context.WithCancel(context.Background())
	m.trackActive(id, agentName, scheduleName, cancel)

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		cancel()
		m.untrackActive(id)
		sched.NotifyScheduleJobFinished(agentName, scheduleName)
		if !opts.BypassConcurrencyLimit {
			sched.ReleaseAgentSlot(agentName)
		}
	}

	go func() {
		runOpts := job.RunOptions{
			WorkDir:   agent.ResolvedWorkDir(),
			Model:     agent.Model,
			Runtime:   agent.ResolvedRuntime(),
			Resume:    opts.Resume,
			OnMessage: opts.OnMessage,
			Release:   release,
		}
		if err := executor.Run(runCtx, j, runOpts); err != nil {
			m.logger.Error("fleet: job run failed", "job_id", id, "agent", agentName, "error", err)
		}
	}()

	return TriggerResult{JobID: id, AgentName: agentName, ScheduleName: scheduleName, Prompt: prompt, StartedAt: now}, nil
}

// schedulerTrigger adapts Trigger to scheduler.TriggerFunc's shape.
func (m *FleetManager) schedulerTrigger(ctx context.Context, agentName, scheduleName string) error {
	_, err := m.Trigger(ctx, agentName, scheduleName, TriggerOptions{TriggerType: job.TriggerSchedule})
	return err
}

// ForkJob starts a new job that continues originalJobID's LLM session,
// per spec.md §4.3's fork path: the prior job's session id becomes the
// resume hint, the new job records forked_from, and job:forked is
// emitted alongside job:created. opts.Prompt (or the default prompt)
// seeds the continuation.
func (m *FleetManager) ForkJob(ctx context.Context, originalJobID string, opts TriggerOptions) (TriggerResult, error) {
	m.mu.Lock()
	cfg := m.config
	jobs := m.jobs
	m.mu.Unlock()
	if cfg == nil || jobs == nil {
		return TriggerResult{}, &fleeterr.InvalidStateError{Operation: "fork", CurrentState: string(m.State()), ExpectedState: "initialized"}
	}

	orig, _, err := jobs.GetJob(originalJobID, false)
	if err != nil {
		return TriggerResult{}, &fleeterr.JobForkError{OriginalJobID: originalJobID, Reason: fleeterr.ForkReasonJobNotFound, Cause: err}
	}
	if orig.SessionID == "" {
		return TriggerResult{}, &fleeterr.JobForkError{OriginalJobID: originalJobID, Reason: fleeterr.ForkReasonNoSession}
	}
	if _, ok := cfg.AgentByName(orig.AgentName); !ok {
		return TriggerResult{}, &fleeterr.JobForkError{OriginalJobID: originalJobID, Reason: fleeterr.ForkReasonAgentNotFound}
	}

	opts.Resume = orig.SessionID
	opts.ForkedFrom = originalJobID
	if opts.TriggerType == "" {
		opts.TriggerType = job.TriggerFork
	}
	return m.Trigger(ctx, orig.AgentName, "", opts)
}

// CancelJob aborts one in-flight job by cancelling its executor's
// context; the executor marks the job cancelled and emits
// job:cancelled. A job that is not currently running (unknown id, or
// already terminal) fails with a JobCancelError.
func (m *FleetManager) CancelJob(jobID string) error {
	m.mu.Lock()
	aj := m.active[jobID]
	m.mu.Unlock()
	if aj == nil {
		return &fleeterr.JobCancelError{JobID: jobID, Reason: fleeterr.CancelReasonNotRunning}
	}
	aj.cancel()
	return nil
}

// Jobs returns the job manager, for read-side operations (getJobs,
// getJob, streamJobOutput, applyRetention).
func (m *FleetManager) Jobs() *job.Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs
}

// Scheduler returns the scheduler, for introspection (getSchedules,
// getSchedule) and enable/disable operations.
func (m *FleetManager) Scheduler() *scheduler.Scheduler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduler
}
