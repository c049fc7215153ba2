package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/fleet"
	"github.com/fleetops/fleetops/internal/scheduler"
)

var (
	schedulesAgentFilter string
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Inspect every configured schedule's runtime state",
	RunE:  runSchedulesList,
}

func init() {
	schedulesCmd.Flags().StringVar(&schedulesAgentFilter, "agent", "", "Filter by agent name")
}

// buildSchedulerView initializes a FleetManager just far enough to
// resolve the scheduler's per-(agent,schedule) state (getSchedules() /
// getSchedule() per spec.md §4.1/§4.2), without starting the tick loop
// or any chat manager. Since each CLI invocation is a fresh process,
// this reflects config-derived state (idle/disabled, no last_run_at)
// rather than a long-running daemon's live counters; attaching to an
// already-running fleetops run process is out of scope.
func buildSchedulerView() (*fleet.FleetManager, error) {
	manager := fleet.New(configPath, nil)
	if err := manager.Initialize(context.Background()); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return manager, nil
}

func runSchedulesList(cmd *cobra.Command, args []string) error {
	printHeader("fleetops schedules")

	manager, err := buildSchedulerView()
	if err != nil {
		return err
	}

	snapshots := manager.GetSchedules()
	if len(snapshots) == 0 {
		fmt.Println("No schedules configured.")
		return nil
	}

	for _, snap := range snapshots {
		if schedulesAgentFilter != "" && snap.AgentName != schedulesAgentFilter {
			continue
		}
		fmt.Printf("%-20s %-20s %s\n", snap.AgentName, snap.ScheduleName, scheduleStatusColor(snap.Status))
		if snap.LastRunAt != nil {
			fmt.Printf("  last run: %s\n", snap.LastRunAt.Format("2006-01-02T15:04:05Z"))
		}
		if snap.NextRunAt != nil {
			fmt.Printf("  next run: %s\n", snap.NextRunAt.Format("2006-01-02T15:04:05Z"))
		}
	}
	return nil
}

func scheduleStatusColor(s scheduler.RuntimeStatus) string {
	switch s {
	case scheduler.StatusRunning:
		return color.CyanString(string(s))
	case scheduler.StatusDisabled:
		return color.YellowString(string(s))
	default:
		return color.GreenString(string(s))
	}
}
