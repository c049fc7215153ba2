package scheduler

import (
	"fmt"
	"time"

	"github.com/fleetops/fleetops/internal/fleetconfig"
)

// dueAt reports whether sched is due to run at now, given its last run
// (nil if it has never run), and the time of its next run after now for
// introspection. spec.md §3 names "interval" as the schedule type the
// core implements but leaves "room for others"; cron is the one other
// type this fleet manager resolves, via the robfig/cron parser wrapped
// in cron.go.
func dueAt(sched fleetconfig.Schedule, last *time.Time, now time.Time) (due bool, next *time.Time, err error) {
	switch sched.Type {
	case "", "interval":
		interval, err := ParseInterval(sched.Interval)
		if err != nil {
			return false, nil, err
		}
		if last == nil {
			return true, nil, nil
		}
		n := last.Add(interval)
		return !now.Before(n), &n, nil
	case "cron":
		expr, err := ParseCron(sched.Interval)
		if err != nil {
			return false, nil, err
		}
		if last == nil {
			return true, nil, nil
		}
		n := expr.Next(*last)
		if n.IsZero() {
			return false, nil, nil
		}
		return !now.Before(n), &n, nil
	default:
		return false, nil, fmt.Errorf("scheduler: unknown schedule type %q", sched.Type)
	}
}
