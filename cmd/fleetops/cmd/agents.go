package cmd

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/fleetconfig"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect configured agents",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every configured agent and its schedules",
	RunE:  runAgentsList,
}

func init() {
	agentsCmd.AddCommand(agentsListCmd)
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	printHeader("fleetops agents")

	cfg, err := fleetconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(cfg.Agents) == 0 {
		fmt.Println("No agents configured.")
		return nil
	}

	for _, agent := range cfg.Agents {
		fmt.Printf("%s\n", color.CyanString(agent.Name))
		fmt.Printf("  model:          %s\n", agent.Model)
		fmt.Printf("  runtime:        %s\n", agent.ResolvedRuntime())
		fmt.Printf("  workdir:        %s\n", agent.ResolvedWorkDir())
		fmt.Printf("  max_concurrent: %d\n", agent.ResolvedMaxConcurrent())
		printAgentChat(agent)
		printAgentSchedules(agent)
	}
	return nil
}

func printAgentChat(agent fleetconfig.Agent) {
	if agent.Chat == nil {
		return
	}
	var bindings []string
	if agent.Chat.Discord != nil {
		bindings = append(bindings, "discord")
	}
	if agent.Chat.Slack != nil {
		bindings = append(bindings, "slack")
	}
	if len(bindings) > 0 {
		fmt.Printf("  chat:           %v\n", bindings)
	}
}

func printAgentSchedules(agent fleetconfig.Agent) {
	if len(agent.Schedules) == 0 {
		return
	}
	names := make([]string, 0, len(agent.Schedules))
	for name := range agent.Schedules {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("  schedules:")
	for _, name := range names {
		sc := agent.Schedules[name]
		state := "enabled"
		if !sc.IsEnabled() {
			state = "disabled"
		}
		fmt.Printf("    - %s: type=%s interval=%s %s\n", name, sc.Type, sc.Interval, state)
	}
}
