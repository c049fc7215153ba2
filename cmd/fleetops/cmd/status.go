package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/fleetconfig"
	"github.com/fleetops/fleetops/internal/job"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show fleet configuration and job store summary",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	printHeader("fleetops status")

	cfg, err := fleetconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("Fleet:      %s\n", cfg.Meta.Name)
	fmt.Printf("Config:     %s\n", cfg.ConfigPath)
	fmt.Printf("State dir:  %s\n", cfg.StateDir)
	fmt.Printf("Agents:     %d\n", len(cfg.Agents))

	store := job.NewStore(cfg.StateDir)
	manager := job.NewManager(store)
	all, total, errs, err := manager.GetJobs(job.ListFilter{})
	if err != nil {
		fmt.Printf("Jobs:       ? (%v)\n", err)
		return nil
	}
	fmt.Printf("Jobs:       %d on disk", total)
	if errs > 0 {
		fmt.Printf(" (%d unreadable)", errs)
	}
	fmt.Println()

	counts := map[job.Status]int{}
	for _, j := range all {
		counts[j.Status]++
	}
	for _, s := range []job.Status{job.StatusPending, job.StatusRunning, job.StatusCompleted, job.StatusFailed, job.StatusCancelled} {
		if n := counts[s]; n > 0 {
			fmt.Printf("  %-10s %d\n", s, n)
		}
	}
	return nil
}
