package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/fleetconfig"
	"github.com/fleetops/fleetops/internal/job"
	"github.com/fleetops/fleetops/internal/sdkmessage"
)

var (
	jobsAgentFilter  string
	jobsStatusFilter string
	jobsLimit        int
	jobsShowOutput   bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect persisted jobs",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted jobs, newest first",
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job's metadata, and optionally its output",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsAgentFilter, "agent", "", "Filter by agent name")
	jobsListCmd.Flags().StringVar(&jobsStatusFilter, "status", "", "Filter by status (pending, running, completed, failed, cancelled)")
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 20, "Max jobs to print (0 = all)")
	jobsShowCmd.Flags().BoolVar(&jobsShowOutput, "output", false, "Include the job's full output log")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
}

func openJobManager() (*job.Manager, error) {
	cfg, err := fleetconfig.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return job.NewManager(job.NewStore(cfg.StateDir)), nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	printHeader("fleetops jobs")

	manager, err := openJobManager()
	if err != nil {
		return err
	}

	jobs, total, errs, err := manager.GetJobs(job.ListFilter{
		AgentName: jobsAgentFilter,
		Status:    job.Status(jobsStatusFilter),
		Limit:     jobsLimit,
	})
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	fmt.Printf("%d job(s) of %d total", len(jobs), total)
	if errs > 0 {
		fmt.Printf(" (%d unreadable, skipped)", errs)
	}
	fmt.Println()

	for _, j := range jobs {
		fmt.Printf("%s  %-9s  %-10s  %-20s  %s\n",
			j.ID, statusColor(j.Status), j.AgentName, j.StartedAt.Format("2006-01-02T15:04:05Z"), firstLine(j.Prompt))
	}
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	printHeader("fleetops job")

	manager, err := openJobManager()
	if err != nil {
		return err
	}

	j, output, err := manager.GetJob(args[0], jobsShowOutput)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	fmt.Printf("ID:            %s\n", j.ID)
	fmt.Printf("Agent:         %s\n", j.AgentName)
	if j.ScheduleName != "" {
		fmt.Printf("Schedule:      %s\n", j.ScheduleName)
	}
	fmt.Printf("Trigger:       %s\n", j.TriggerType)
	fmt.Printf("Status:        %s\n", statusColor(j.Status))
	fmt.Printf("Started:       %s\n", j.StartedAt.Format("2006-01-02T15:04:05Z"))
	if j.FinishedAt != nil {
		fmt.Printf("Finished:      %s\n", j.FinishedAt.Format("2006-01-02T15:04:05Z"))
	}
	if j.ExitReason != "" {
		fmt.Printf("Exit reason:   %s\n", j.ExitReason)
	}
	if j.ErrorMessage != "" {
		fmt.Printf("Error:         %s\n", j.ErrorMessage)
	}
	if j.SessionID != "" {
		fmt.Printf("Session:       %s\n", j.SessionID)
	}
	if j.ForkedFrom != "" {
		fmt.Printf("Forked from:   %s\n", j.ForkedFrom)
	}
	fmt.Printf("Prompt:        %s\n", j.Prompt)

	if !jobsShowOutput {
		return nil
	}
	fmt.Println("\nOutput:")
	for _, msg := range output {
		printOutputLine(msg)
	}
	return nil
}

func printOutputLine(msg sdkmessage.Message) {
	switch msg.Type {
	case sdkmessage.TypeAssistant:
		if text := sdkmessage.ExtractText(msg); text != "" {
			fmt.Printf("  [assistant] %s\n", firstLine(text))
		}
	case sdkmessage.TypeError:
		if msg.Error != nil {
			fmt.Printf("  [error] %s\n", msg.Error.Message)
		}
	case sdkmessage.TypeResult:
		if msg.Result != nil {
			fmt.Printf("  [result] success=%t %s\n", msg.Result.Success, msg.Result.Summary)
		}
	default:
		fmt.Printf("  [%s]\n", msg.Type)
	}
}

func statusColor(s job.Status) string {
	switch s {
	case job.StatusCompleted:
		return color.GreenString(string(s))
	case job.StatusFailed:
		return color.RedString(string(s))
	case job.StatusCancelled:
		return color.YellowString(string(s))
	case job.StatusRunning:
		return color.CyanString(string(s))
	default:
		return string(s)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
