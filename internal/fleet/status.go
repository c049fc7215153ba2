package fleet

import (
	"time"

	"github.com/fleetops/fleetops/internal/fleetconfig"
	"github.com/fleetops/fleetops/internal/fleeterr"
	"github.com/fleetops/fleetops/internal/scheduler"
)

// FleetStatus is the getFleetStatus() snapshot of spec.md §4.1/§4.6:
// state, uptime, counts, and scheduler status.
type FleetStatus struct {
	State      State
	AgentCount int
	ConfigPath string
	// Uptime is the duration since Start last transitioned the manager to
	// StateRunning. Zero if the manager has never run.
	Uptime time.Duration
	// Schedules is the runtime snapshot of every (agent, schedule) pair,
	// mirroring GetSchedules().
	Schedules []scheduler.ScheduleSnapshot
}

// GetFleetStatus returns a point-in-time view of the manager's
// lifecycle state, resolved fleet size, uptime, and scheduler status.
func (m *FleetManager) GetFleetStatus() FleetStatus {
	m.mu.Lock()
	st := FleetStatus{State: m.state}
	if m.config != nil {
		st.AgentCount = len(m.config.Agents)
		st.ConfigPath = m.config.ConfigPath
	}
	if !m.startedAt.IsZero() && m.state == StateRunning {
		st.Uptime = time.Since(m.startedAt)
	}
	sched := m.scheduler
	m.mu.Unlock()

	if sched != nil {
		st.Schedules = sched.Snapshot()
	}
	return st
}

// AgentInfo is the getAgentInfo()/getAgentInfoByName() view of one
// agent: its resolved config plus live concurrency accounting.
type AgentInfo struct {
	Agent         fleetconfig.Agent
	ActiveJobs    int
	MaxConcurrent int
}

// GetAgentInfo returns every configured agent, in the fleet's declared
// order.
func (m *FleetManager) GetAgentInfo() []AgentInfo {
	m.mu.Lock()
	cfg := m.config
	sched := m.scheduler
	m.mu.Unlock()
	if cfg == nil {
		return nil
	}
	out := make([]AgentInfo, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		active, limit := sched.AgentActiveCount(a.Name)
		out = append(out, AgentInfo{Agent: a, ActiveJobs: active, MaxConcurrent: limit})
	}
	return out
}

// GetAgentInfoByName returns one agent's info, or an AgentNotFoundError.
func (m *FleetManager) GetAgentInfoByName(name string) (AgentInfo, error) {
	m.mu.Lock()
	cfg := m.config
	sched := m.scheduler
	m.mu.Unlock()
	if cfg == nil {
		return AgentInfo{}, &fleeterr.AgentNotFoundError{AgentName: name}
	}
	agent, ok := cfg.AgentByName(name)
	if !ok {
		return AgentInfo{}, &fleeterr.AgentNotFoundError{AgentName: name, AvailableAgents: cfg.AgentNames()}
	}
	active, limit := sched.AgentActiveCount(name)
	return AgentInfo{Agent: agent, ActiveJobs: active, MaxConcurrent: limit}, nil
}

// GetSchedules returns every (agent, schedule) pair's runtime snapshot.
func (m *FleetManager) GetSchedules() []scheduler.ScheduleSnapshot {
	return m.Scheduler().Snapshot()
}

// GetSchedule returns one (agent, schedule) pair's runtime snapshot.
func (m *FleetManager) GetSchedule(agentName, scheduleName string) (scheduler.ScheduleSnapshot, error) {
	for _, snap := range m.Scheduler().Snapshot() {
		if snap.AgentName == agentName && snap.ScheduleName == scheduleName {
			return snap, nil
		}
	}
	return scheduler.ScheduleSnapshot{}, &fleeterr.ScheduleNotFoundError{AgentName: agentName, ScheduleName: scheduleName}
}

// EnableSchedule resumes ticking a previously disabled schedule.
func (m *FleetManager) EnableSchedule(agentName, scheduleName string) error {
	if !m.Scheduler().EnableSchedule(agentName, scheduleName) {
		return &fleeterr.ScheduleNotFoundError{AgentName: agentName, ScheduleName: scheduleName}
	}
	return nil
}

// DisableSchedule pauses ticking for (agentName, scheduleName) without
// removing it from configuration.
func (m *FleetManager) DisableSchedule(agentName, scheduleName string) error {
	if !m.Scheduler().DisableSchedule(agentName, scheduleName) {
		return &fleeterr.ScheduleNotFoundError{AgentName: agentName, ScheduleName: scheduleName}
	}
	return nil
}
