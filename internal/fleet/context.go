package fleet

import (
	"context"
	"log/slog"

	"github.com/fleetops/fleetops/internal/fleetconfig"
)

// Context is the narrow read-only facade spec.md §9 calls the "context
// object": shared across the FleetManager's children (the chat
// managers) without making them depend on the FleetManager type itself,
// which would create a cyclic import between internal/fleet and
// internal/channels/discord|slack. FleetManager implements this
// interface directly; chat managers hold only a Context.
type Context interface {
	Config() *fleetconfig.FleetConfig
	StateDir() string
	Logger() *slog.Logger
	Emitter() *Bus
	Trigger(ctx context.Context, agentName, scheduleName string, opts TriggerOptions) (TriggerResult, error)
}

// ChatManager is implemented by chat connector managers (Discord, Slack)
// and injected into the FleetManager at construction time. Keeping the
// interface here, rather than the FleetManager importing the concrete
// discord/slack packages, is what lets those packages import
// internal/fleet for Context/TriggerOptions without a cycle.
type ChatManager interface {
	// Name identifies the manager for logging, e.g. "discord" or "slack".
	Name() string
	// Initialize wires the manager to fctx. Must be safe to call even if
	// the manager ends up with nothing to do (e.g. no agent configures
	// this chat platform); implementations log and become a no-op rather
	// than returning an error in that case.
	Initialize(fctx Context) error
	// Start connects to the chat platform. Connect failures are the
	// manager's own responsibility to log; Start itself should still
	// return promptly.
	Start(ctx context.Context) error
	// Stop disconnects. Best-effort: failures are logged by the caller,
	// not propagated as fatal.
	Stop(ctx context.Context) error
}
