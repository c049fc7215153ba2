package fleetconfig

import "reflect"

// ChangeType enumerates the kinds of change a reload can produce.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// ChangeCategory distinguishes agent-level from schedule-level changes.
type ChangeCategory string

const (
	CategoryAgent    ChangeCategory = "agent"
	CategorySchedule ChangeCategory = "schedule"
)

// Change is one entry in a reload's change set.
type Change struct {
	Type     ChangeType
	Category ChangeCategory
	Name     string // agent name, or "agent/schedule" for schedule changes
}

// Diff computes the change set between the previous and next resolved
// fleet configs: for each agent, added/removed/modified; for each
// (agent, schedule) pair, the same. Modification is defined by deep
// equality of the resolved definition, per spec.md §4.5.
func Diff(oldCfg, newCfg *FleetConfig) []Change {
	var changes []Change

	oldAgents := map[string]Agent{}
	if oldCfg != nil {
		for _, a := range oldCfg.Agents {
			oldAgents[a.Name] = a
		}
	}
	newAgents := map[string]Agent{}
	for _, a := range newCfg.Agents {
		newAgents[a.Name] = a
	}

	for name, newAgent := range newAgents {
		oldAgent, existed := oldAgents[name]
		if !existed {
			changes = append(changes, Change{Type: ChangeAdded, Category: CategoryAgent, Name: name})
			continue
		}
		if !agentsEqual(oldAgent, newAgent) {
			changes = append(changes, Change{Type: ChangeModified, Category: CategoryAgent, Name: name})
		}
		changes = append(changes, diffSchedules(name, oldAgent.Schedules, newAgent.Schedules)...)
	}
	for name := range oldAgents {
		if _, stillExists := newAgents[name]; !stillExists {
			changes = append(changes, Change{Type: ChangeRemoved, Category: CategoryAgent, Name: name})
		}
	}
	return changes
}

func diffSchedules(agentName string, oldSched, newSched map[string]Schedule) []Change {
	var changes []Change
	for name, ns := range newSched {
		os, existed := oldSched[name]
		key := agentName + "/" + name
		if !existed {
			changes = append(changes, Change{Type: ChangeAdded, Category: CategorySchedule, Name: key})
			continue
		}
		if !reflect.DeepEqual(os, ns) {
			changes = append(changes, Change{Type: ChangeModified, Category: CategorySchedule, Name: key})
		}
	}
	for name := range oldSched {
		if _, stillExists := newSched[name]; !stillExists {
			changes = append(changes, Change{Type: ChangeRemoved, Category: CategorySchedule, Name: agentName + "/" + name})
		}
	}
	return changes
}

func agentsEqual(a, b Agent) bool {
	// Compare everything except the filesystem bookkeeping fields, which
	// can legitimately differ (e.g. path casing) without representing a
	// meaningful config change.
	a.ConfigDir, b.ConfigDir = "", ""
	a.SourcePath, b.SourcePath = "", ""
	return reflect.DeepEqual(a, b)
}
