package scheduler

import (
	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour,
// dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// ParseCron parses a standard 5-field cron expression into a schedule
// whose Next(t) yields the first matching instant after t.
func ParseCron(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}
