package job

import (
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fleetops/fleetops/internal/sdkmessage"
)

// ListFilter narrows GetJobs results. Zero values mean "no filter" /
// "no paging".
type ListFilter struct {
	AgentName     string
	Status        Status
	StartedAfter  *time.Time
	StartedBefore *time.Time
	Limit         int
	Offset        int
}

func (f ListFilter) matches(j *Job) bool {
	if f.AgentName != "" && j.AgentName != f.AgentName {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.StartedAfter != nil && j.StartedAt.Before(*f.StartedAfter) {
		return false
	}
	if f.StartedBefore != nil && j.StartedAt.After(*f.StartedBefore) {
		return false
	}
	return true
}

// Manager implements the read/list/retention side of the job store:
// spec.md §4.4's getJobs/getJob/streamJobOutput/applyRetention.
type Manager struct {
	store *Store
}

// NewManager builds a Manager over store.
func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// GetJobs returns jobs matching filter, newest-first by StartedAt, with
// filter.Offset/Limit paging applied after filtering. total is the count
// of matching jobs before paging; errs is the count of metadata files
// that failed to parse (skipped, not fatal), per spec.md §4.4's
// {jobs, total, errors} shape.
func (m *Manager) GetJobs(filter ListFilter) (jobs []*Job, total int, errs int, err error) {
	ids, err := m.store.ListJobIDs()
	if err != nil {
		return nil, 0, 0, err
	}

	var matched []*Job
	for _, id := range ids {
		j, err := m.store.LoadMetadata(id)
		if err != nil {
			slog.Warn("job: skipping unreadable metadata", "job_id", id, "error", err)
			errs++
			continue
		}
		if filter.matches(j) {
			matched = append(matched, j)
		}
	}

	sort.Slice(matched, func(i, k int) bool {
		return matched[i].StartedAt.After(matched[k].StartedAt)
	})

	total = len(matched)
	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return matched[start:end], total, errs, nil
}

// GetJob returns one job's metadata, and its output when includeOutput
// is set.
func (m *Manager) GetJob(id string, includeOutput bool) (*Job, []sdkmessage.Message, error) {
	j, err := m.store.LoadMetadata(id)
	if err != nil {
		return nil, nil, err
	}
	if !includeOutput {
		return j, nil, nil
	}
	out, err := m.store.ReadOutput(id)
	if err != nil {
		return j, nil, err
	}
	return j, out, nil
}

// ApplyRetention enforces per-agent and total job caps, deleting the
// oldest jobs beyond each cap. A cap of 0 disables that check. Returns
// the number of jobs deleted.
//
// Guarded by an advisory file lock on the state dir so two fleet manager
// processes sharing one state dir don't race each other's retention
// sweeps. If another process already holds the lock, ApplyRetention is a
// no-op (returns 0, nil) rather than blocking.
func (m *Manager) ApplyRetention(maxPerAgent, maxTotal int) (int, error) {
	lock := newStateDirLock(filepath.Join(m.store.StateDir(), ".retention.lock"))
	acquired, err := lock.tryLock()
	if err != nil {
		return 0, err
	}
	if !acquired {
		slog.Warn("job: retention sweep skipped, lock held by another process")
		return 0, nil
	}
	defer lock.unlock()

	ids, err := m.store.ListJobIDs()
	if err != nil {
		return 0, err
	}

	var all []*Job
	for _, id := range ids {
		j, err := m.store.LoadMetadata(id)
		if err != nil {
			slog.Warn("job: skipping unreadable metadata during retention", "job_id", id, "error", err)
			continue
		}
		all = append(all, j)
	}

	toDelete := map[string]bool{}

	if maxPerAgent > 0 {
		byAgent := map[string][]*Job{}
		for _, j := range all {
			byAgent[j.AgentName] = append(byAgent[j.AgentName], j)
		}
		for _, jobs := range byAgent {
			sort.Slice(jobs, func(i, k int) bool { return jobs[i].StartedAt.After(jobs[k].StartedAt) })
			for i := maxPerAgent; i < len(jobs); i++ {
				toDelete[jobs[i].ID] = true
			}
		}
	}

	if maxTotal > 0 {
		kept := make([]*Job, 0, len(all))
		for _, j := range all {
			if !toDelete[j.ID] {
				kept = append(kept, j)
			}
		}
		sort.Slice(kept, func(i, k int) bool { return kept[i].StartedAt.After(kept[k].StartedAt) })
		for i := maxTotal; i < len(kept); i++ {
			toDelete[kept[i].ID] = true
		}
	}

	deleted := 0
	for id := range toDelete {
		if err := m.store.DeleteJob(id); err != nil {
			slog.Warn("job: failed to delete job during retention", "job_id", id, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}
