package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fleetops/fleetops/internal/fleetconfig"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
	last   map[string]any
}

func (r *recordingEmitter) Emit(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.last == nil {
		r.last = map[string]any{}
	}
	r.last[event] = payload
}

func (r *recordingEmitter) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func enabled() *bool {
	b := true
	return &b
}

func disabled() *bool {
	b := false
	return &b
}

func TestTickTriggersDueSchedule(t *testing.T) {
	emitter := &recordingEmitter{}
	var triggered []string
	var mu sync.Mutex
	trigger := func(ctx context.Context, agent, schedule string) error {
		mu.Lock()
		triggered = append(triggered, agent+"/"+schedule)
		mu.Unlock()
		return nil
	}

	s := New(time.Hour, trigger, emitter)
	s.SetAgents([]fleetconfig.Agent{{
		Name: "agent-1", MaxConcurrent: 1,
		Schedules: map[string]fleetconfig.Schedule{"hourly": {Type: "interval", Interval: "1h", Enabled: enabled()}},
	}})

	s.tick(time.Now().UTC())

	mu.Lock()
	defer mu.Unlock()
	if len(triggered) != 1 || triggered[0] != "agent-1/hourly" {
		t.Fatalf("expected agent-1/hourly to be triggered, got %v", triggered)
	}
	if emitter.count(EventScheduleTriggered) != 1 {
		t.Errorf("expected 1 schedule:triggered event, got %d", emitter.count(EventScheduleTriggered))
	}
}

func TestTickSkipsDisabledSchedule(t *testing.T) {
	emitter := &recordingEmitter{}
	triggerCalled := false
	trigger := func(ctx context.Context, agent, schedule string) error {
		triggerCalled = true
		return nil
	}

	s := New(time.Hour, trigger, emitter)
	s.SetAgents([]fleetconfig.Agent{{
		Name: "agent-1", MaxConcurrent: 1,
		Schedules: map[string]fleetconfig.Schedule{"hourly": {Type: "interval", Interval: "1h", Enabled: disabled()}},
	}})

	s.tick(time.Now().UTC())

	if triggerCalled {
		t.Error("expected disabled schedule not to trigger")
	}
	if emitter.count(EventScheduleSkipped) != 1 {
		t.Errorf("expected 1 schedule:skipped event, got %d", emitter.count(EventScheduleSkipped))
	}
}

func TestTickSkipsWhenNotYetDue(t *testing.T) {
	emitter := &recordingEmitter{}
	calls := 0
	trigger := func(ctx context.Context, agent, schedule string) error {
		calls++
		return nil
	}

	s := New(time.Hour, trigger, emitter)
	s.SetAgents([]fleetconfig.Agent{{
		Name: "agent-1", MaxConcurrent: 1,
		Schedules: map[string]fleetconfig.Schedule{"hourly": {Type: "interval", Interval: "1h", Enabled: enabled()}},
	}})

	now := time.Now().UTC()
	s.tick(now)
	if calls != 1 {
		t.Fatalf("expected first tick to trigger, got %d calls", calls)
	}
	s.tick(now.Add(time.Minute))
	if calls != 1 {
		t.Fatalf("expected second tick (too soon) not to trigger, got %d calls", calls)
	}
}

func TestTickTriggersDueCronSchedule(t *testing.T) {
	emitter := &recordingEmitter{}
	var triggered []string
	var mu sync.Mutex
	trigger := func(ctx context.Context, agent, schedule string) error {
		mu.Lock()
		triggered = append(triggered, agent+"/"+schedule)
		mu.Unlock()
		return nil
	}

	s := New(time.Hour, trigger, emitter)
	s.SetAgents([]fleetconfig.Agent{{
		Name: "agent-1", MaxConcurrent: 1,
		Schedules: map[string]fleetconfig.Schedule{"nightly": {Type: "cron", Interval: "0 0 * * *", Enabled: enabled()}},
	}})

	// A fresh cron schedule with no prior run is immediately due, same as
	// a fresh interval schedule.
	s.tick(time.Now().UTC())

	mu.Lock()
	defer mu.Unlock()
	if len(triggered) != 1 || triggered[0] != "agent-1/nightly" {
		t.Fatalf("expected agent-1/nightly to be triggered, got %v", triggered)
	}
}

func TestTickSkipsCronNotYetDue(t *testing.T) {
	calls := 0
	trigger := func(ctx context.Context, agent, schedule string) error {
		calls++
		return nil
	}

	s := New(time.Hour, trigger, nil)
	s.SetAgents([]fleetconfig.Agent{{
		Name: "agent-1", MaxConcurrent: 1,
		Schedules: map[string]fleetconfig.Schedule{"nightly": {Type: "cron", Interval: "0 0 * * *", Enabled: enabled()}},
	}})

	midnight := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	s.tick(midnight)
	if calls != 1 {
		t.Fatalf("expected midnight tick to trigger, got %d calls", calls)
	}
	s.tick(midnight.Add(time.Hour))
	if calls != 1 {
		t.Fatalf("expected same-day tick not to re-trigger, got %d calls", calls)
	}
}

func TestTickSkipsOnConcurrencyLimit(t *testing.T) {
	emitter := &recordingEmitter{}
	trigger := func(ctx context.Context, agent, schedule string) error { return nil }

	s := New(time.Hour, trigger, emitter)
	s.SetAgents([]fleetconfig.Agent{{
		Name: "agent-1", MaxConcurrent: 1,
		Schedules: map[string]fleetconfig.Schedule{"hourly": {Type: "interval", Interval: "1h", Enabled: enabled()}},
	}})

	if !s.TryAcquireAgentSlot("agent-1") {
		t.Fatal("expected to acquire the only slot")
	}

	s.tick(time.Now().UTC())
	if emitter.count(EventScheduleSkipped) != 1 {
		t.Errorf("expected concurrency-limited skip, got events %v", emitter.events)
	}
}

func TestEnableDisableSchedule(t *testing.T) {
	trigger := func(ctx context.Context, agent, schedule string) error { return nil }
	s := New(time.Hour, trigger, nil)
	s.SetAgents([]fleetconfig.Agent{{
		Name: "agent-1",
		Schedules: map[string]fleetconfig.Schedule{"hourly": {Type: "interval", Interval: "1h", Enabled: enabled()}},
	}})

	if !s.DisableSchedule("agent-1", "hourly") {
		t.Fatal("expected disable to succeed")
	}
	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Status != StatusDisabled {
		t.Fatalf("expected disabled status, got %+v", snap)
	}

	if !s.EnableSchedule("agent-1", "hourly") {
		t.Fatal("expected enable to succeed")
	}
	snap = s.Snapshot()
	if snap[0].Status != StatusIdle {
		t.Fatalf("expected idle status after enable, got %+v", snap)
	}
}

func TestSetAgentsPreservesLastRunAt(t *testing.T) {
	trigger := func(ctx context.Context, agent, schedule string) error { return nil }
	s := New(time.Hour, trigger, nil)
	agents := []fleetconfig.Agent{{
		Name: "agent-1", MaxConcurrent: 2,
		Schedules: map[string]fleetconfig.Schedule{"hourly": {Type: "interval", Interval: "1h", Enabled: enabled()}},
	}}
	s.SetAgents(agents)
	s.tick(time.Now().UTC())

	before := s.Snapshot()
	if before[0].LastRunAt == nil {
		t.Fatal("expected last_run_at to be set after first tick")
	}

	// Reload with the same config; runtime state must survive.
	s.SetAgents(agents)
	after := s.Snapshot()
	if after[0].LastRunAt == nil {
		t.Fatal("expected last_run_at to survive a reload with unchanged schedules")
	}
}

func TestScheduleJobNotifications(t *testing.T) {
	trigger := func(ctx context.Context, agent, schedule string) error { return nil }
	s := New(time.Hour, trigger, nil)
	s.SetAgents([]fleetconfig.Agent{{
		Name: "agent-1",
		Schedules: map[string]fleetconfig.Schedule{"hourly": {Type: "interval", Interval: "1h", Enabled: enabled()}},
	}})

	s.NotifyScheduleJobStarted("agent-1", "hourly")
	snap := s.Snapshot()
	if snap[0].Status != StatusRunning {
		t.Fatalf("expected running status, got %+v", snap)
	}

	s.NotifyScheduleJobFinished("agent-1", "hourly")
	snap = s.Snapshot()
	if snap[0].Status != StatusIdle {
		t.Fatalf("expected idle status after finish, got %+v", snap)
	}
}
