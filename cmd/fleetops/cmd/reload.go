package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/fleetconfig"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Signal a running fleetops process to reload its configuration",
	RunE:  runReload,
}

func runReload(cmd *cobra.Command, args []string) error {
	cfg, err := fleetconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pidPath := filepath.Join(cfg.StateDir, "fleetops.pid")
	raw, err := os.ReadFile(pidPath)
	if err != nil {
		return fmt.Errorf("read pid file %s (is fleetops running?): %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("malformed pid file %s: %w", pidPath, err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	fmt.Printf("Sent reload signal to fleetops (pid %d)\n", pid)
	return nil
}
