package fleetconfig

import "testing"

func TestDiffAddedAgent(t *testing.T) {
	oldCfg := &FleetConfig{Agents: []Agent{{Name: "agent-1"}}}
	newCfg := &FleetConfig{Agents: []Agent{{Name: "agent-1"}, {Name: "agent-2"}}}

	changes := Diff(oldCfg, newCfg)
	found := false
	for _, c := range changes {
		if c.Type == ChangeAdded && c.Category == CategoryAgent && c.Name == "agent-2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected added agent-2 in changes, got %+v", changes)
	}
}

func TestDiffRemovedAgent(t *testing.T) {
	oldCfg := &FleetConfig{Agents: []Agent{{Name: "agent-1"}, {Name: "agent-2"}}}
	newCfg := &FleetConfig{Agents: []Agent{{Name: "agent-1"}}}

	changes := Diff(oldCfg, newCfg)
	found := false
	for _, c := range changes {
		if c.Type == ChangeRemoved && c.Category == CategoryAgent && c.Name == "agent-2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected removed agent-2 in changes, got %+v", changes)
	}
}

func TestDiffModifiedSchedule(t *testing.T) {
	oldCfg := &FleetConfig{Agents: []Agent{{Name: "agent-1", Schedules: map[string]Schedule{
		"hourly": {Name: "hourly", Type: "interval", Interval: "1h"},
	}}}}
	newCfg := &FleetConfig{Agents: []Agent{{Name: "agent-1", Schedules: map[string]Schedule{
		"hourly": {Name: "hourly", Type: "interval", Interval: "30m"},
	}}}}

	changes := Diff(oldCfg, newCfg)
	found := false
	for _, c := range changes {
		if c.Type == ChangeModified && c.Category == CategorySchedule && c.Name == "agent-1/hourly" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected modified schedule in changes, got %+v", changes)
	}
}

func TestDiffNoChanges(t *testing.T) {
	cfg := &FleetConfig{Agents: []Agent{{Name: "agent-1"}}}
	changes := Diff(cfg, cfg)
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}
