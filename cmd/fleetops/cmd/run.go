package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/channels/discord"
	"github.com/fleetops/fleetops/internal/channels/slack"
	"github.com/fleetops/fleetops/internal/fleet"
	"github.com/fleetops/fleetops/internal/fleetconfig"
	"github.com/fleetops/fleetops/internal/sdkmessage"
)

var (
	runCheckInterval     time.Duration
	runShutdownTimeout   time.Duration
	runCancelOnTimeout   bool
	runRetentionInterval time.Duration
	runRetentionPerAgent int
	runRetentionTotal    int
	runExecCommands      []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the fleet manager and block until signaled to stop",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.DurationVar(&runCheckInterval, "check-interval", time.Second, "Scheduler tick period")
	f.DurationVar(&runShutdownTimeout, "shutdown-timeout", 30*time.Second, "How long to wait for in-flight jobs on shutdown (0 = wait forever)")
	f.BoolVar(&runCancelOnTimeout, "cancel-on-timeout", true, "Cancel in-flight jobs if shutdown-timeout elapses")
	f.DurationVar(&runRetentionInterval, "retention-interval", 10*time.Minute, "How often to sweep job retention (0 disables the sweep)")
	f.IntVar(&runRetentionPerAgent, "retention-max-per-agent", 100, "Max retained jobs per agent (0 = unlimited)")
	f.IntVar(&runRetentionTotal, "retention-max-total", 0, "Max retained jobs across the fleet (0 = unlimited)")
	f.StringArrayVar(&runExecCommands, "exec", nil, "runtime=/path/to/binary mapping for the agent-runtime invocation, e.g. sdk=/usr/local/bin/agent-sdk")
}

func runRun(cmd *cobra.Command, args []string) error {
	printHeader("fleetops run")

	commands, err := parseExecCommands(runExecCommands)
	if err != nil {
		return err
	}
	logger := slog.Default()

	applyRuntimeOverlay(cmd)

	query := &sdkmessage.ExecQuery{Command: commands, Logger: logger}

	manager := fleet.New(configPath, query,
		fleet.WithCheckInterval(runCheckInterval),
		fleet.WithLogger(logger),
		fleet.WithChatManagers(discord.New(), slack.New()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := writePIDFile(manager); err != nil {
		logger.Warn("run: could not write pid file", "error", err)
	}
	defer removePIDFile(manager)

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	fmt.Printf("fleetops running (state dir: %s)\n", manager.StateDir())

	stopRetention := startRetentionLoop(ctx, manager, logger)
	defer stopRetention()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		sig := <-sigCh
		if sig == syscall.SIGHUP {
			fmt.Println("fleetops: reloading configuration")
			if err := manager.Reload(ctx); err != nil {
				logger.Error("run: reload failed, keeping existing configuration", "error", err)
			}
			continue
		}
		fmt.Printf("fleetops: received %s, shutting down\n", sig)
		break
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), runShutdownTimeout+5*time.Second)
	defer stopCancel()
	return manager.Stop(stopCtx, fleet.StopOptions{
		Timeout:         runShutdownTimeout,
		CancelOnTimeout: runCancelOnTimeout,
	})
}

// applyRuntimeOverlay lets FLEETOPS_RUNTIME_* environment variables
// (spec.md's ambient config stack, loaded by fleetconfig.Load as
// FleetConfig.Runtime) fill in any --check-interval/--shutdown-timeout/
// --retention-max-* flag the caller didn't pass explicitly on the
// command line; explicit flags always win.
func applyRuntimeOverlay(cmd *cobra.Command) {
	cfg, err := fleetconfig.Load(configPath)
	if err != nil {
		return
	}
	overlay := cfg.Runtime
	flags := cmd.Flags()
	if overlay.CheckInterval > 0 && !flags.Changed("check-interval") {
		runCheckInterval = overlay.CheckInterval
	}
	if overlay.ShutdownTimeout > 0 && !flags.Changed("shutdown-timeout") {
		runShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.RetentionPerAgent > 0 && !flags.Changed("retention-max-per-agent") {
		runRetentionPerAgent = overlay.RetentionPerAgent
	}
	if overlay.RetentionTotal > 0 && !flags.Changed("retention-max-total") {
		runRetentionTotal = overlay.RetentionTotal
	}
}

// parseExecCommands turns ["sdk=/usr/bin/agent-sdk"] into {"sdk": "/usr/bin/agent-sdk"},
// defaulting to {"sdk": "agent-sdk"} (resolved via PATH) when unset.
func parseExecCommands(entries []string) (map[string]string, error) {
	commands := map[string]string{"sdk": "agent-sdk"}
	for _, entry := range entries {
		name, bin, ok := strings.Cut(entry, "=")
		if !ok || name == "" || bin == "" {
			return nil, fmt.Errorf("invalid --exec value %q, expected runtime=/path/to/binary", entry)
		}
		commands[name] = bin
	}
	return commands, nil
}

// startRetentionLoop periodically sweeps job retention per spec.md
// §4.4's applyRetention, returning a stop function. A zero interval
// disables the sweep entirely.
func startRetentionLoop(ctx context.Context, manager *fleet.FleetManager, logger *slog.Logger) func() {
	if runRetentionInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(runRetentionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				jobs := manager.Jobs()
				if jobs == nil {
					continue
				}
				deleted, err := jobs.ApplyRetention(runRetentionPerAgent, runRetentionTotal)
				if err != nil {
					logger.Warn("run: retention sweep failed", "error", err)
					continue
				}
				if deleted > 0 {
					logger.Info("run: retention sweep complete", "deleted", deleted)
				}
			}
		}
	}()
	return func() { close(done) }
}

func pidFilePath(manager *fleet.FleetManager) string {
	stateDir := manager.StateDir()
	if stateDir == "" {
		return ""
	}
	return filepath.Join(stateDir, "fleetops.pid")
}

func writePIDFile(manager *fleet.FleetManager) error {
	path := pidFilePath(manager)
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile(manager *fleet.FleetManager) {
	if path := pidFilePath(manager); path != "" {
		_ = os.Remove(path)
	}
}
