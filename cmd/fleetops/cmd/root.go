package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/fleetops/fleetops/cmd/fleetops/cmd.version=1.2.3"
	version = "0.1.0"
	logo    = `
  __ _          _
 / _| | ___  ___| |_ ___  _ __  ___
| |_| |/ _ \/ _ \ __/ _ \| '_ \/ __|
|  _| |  __/  __/ || (_) | |_) \__ \
|_| |_|\___|\___|\__\___/| .__/|___/
                          |_|
`
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fleetops",
	Short: "fleetops - declarative fleet of scheduled, chat-triggered LLM agents",
	Long:  color.CyanString(logo) + "\nA supervisor for a declarative fleet of LLM-driven agent workers.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fleet.yaml", "Path to the fleet configuration file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(schedulesCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
