// Package discord implements the Discord chat connector manager of
// spec.md §4.6: one discordgo session per agent that configures
// chat.discord, routing inbound channel messages into FleetManager's
// trigger path and streaming assistant output back as Discord messages
// and embeds.
package discord

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/fleetops/fleetops/internal/channels"
	"github.com/fleetops/fleetops/internal/chatsession"
	"github.com/fleetops/fleetops/internal/fleet"
	"github.com/fleetops/fleetops/internal/fleetconfig"
)

// messageLimit is Discord's single-message length cap, per spec.md §4.6.
const messageLimit = 2000

const notConfiguredMessage = "This agent is not configured for Discord chat."

const fallbackMessage = "I've completed the task, but I don't have a specific response to share."

const errorMessageFormat = "❌ **Error**: %s\n\nPlease try again or use /reset to start over."

// interChunkDelay paces multi-chunk replies to stay under Discord's
// per-channel message rate limit.
const interChunkDelay = 750 * time.Millisecond

var platform = channels.Platform{
	Name:            "discord",
	MessageLimit:    messageLimit,
	CodeFenceAware:  true,
	InterChunkDelay: interChunkDelay,
	NotConfigured:   notConfiguredMessage,
	Fallback:        fallbackMessage,
	ErrorPrefix:     errorMessageFormat,
}

// connector owns one agent's Discord session, its session store, and
// the set of channel/guild ids it's willing to route.
type connector struct {
	agentName string
	binding   fleetconfig.DiscordBinding
	session   *discordgo.Session
	sessions  *chatsession.Store
	fctx      fleet.Context
	logger    *slog.Logger

	removeHandlers []func()
}

// Manager is the per-fleet Discord ChatManager (spec.md §4.6). It
// satisfies internal/fleet.ChatManager.
type Manager struct {
	fctx       fleet.Context
	logger     *slog.Logger
	mu         sync.Mutex
	connectors []*connector
}

// New builds an uninitialized Discord Manager. Initialize must be called
// before Start.
func New() *Manager {
	return &Manager{}
}

// Name identifies this manager for logging, per internal/fleet.ChatManager.
func (m *Manager) Name() string { return "discord" }

// Initialize builds one connector per agent declaring chat.discord, per
// spec.md §4.6's "Lifecycle". An agent whose bot-token env var is unset
// is skipped with a warning rather than failing Initialize; Initialize
// overall is a no-op (and still succeeds) if no agent configures
// Discord at all.
func (m *Manager) Initialize(fctx fleet.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fctx = fctx
	m.logger = fctx.Logger()

	cfg := fctx.Config()
	if cfg == nil {
		return nil
	}

	sessionsRoot := fctx.StateDir()
	var connectors []*connector
	for _, agent := range cfg.Agents {
		if agent.Chat == nil || agent.Chat.Discord == nil {
			continue
		}
		binding := *agent.Chat.Discord
		token := os.Getenv(binding.BotTokenEnv)
		if strings.TrimSpace(token) == "" {
			m.logger.Warn("discord: bot token env var not set, skipping agent", "agent", agent.Name, "env", binding.BotTokenEnv)
			continue
		}

		session, err := discordgo.New("Bot " + token)
		if err != nil {
			m.logger.Warn("discord: failed to build session, skipping agent", "agent", agent.Name, "error", err)
			continue
		}
		session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsDirectMessages

		connectors = append(connectors, &connector{
			agentName: agent.Name,
			binding:   binding,
			session:   session,
			sessions:  chatsession.NewStore(sessionsRoot),
			fctx:      fctx,
			logger:    m.logger.With("agent", agent.Name),
		})
	}

	m.connectors = connectors
	return nil
}

// Start connects every connector's session and subscribes to inbound
// message events, per spec.md §4.6's "start". A connect failure is
// logged and does not abort the other connectors.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	connectors := append([]*connector(nil), m.connectors...)
	m.mu.Unlock()

	for _, c := range connectors {
		c.removeHandlers = append(c.removeHandlers,
			c.session.AddHandler(c.onMessageCreate),
			c.session.AddHandler(c.onError),
		)
		if err := c.session.Open(); err != nil {
			m.logger.Error("discord: connect failed", "agent", c.agentName, "error", err)
			continue
		}
		m.logger.Info("discord: connected", "agent", c.agentName)
	}
	return nil
}

// Stop disconnects every session. Best-effort: a disconnect failure is
// logged and does not abort the others or return an error.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	connectors := append([]*connector(nil), m.connectors...)
	m.mu.Unlock()

	for _, c := range connectors {
		for _, remove := range c.removeHandlers {
			remove()
		}
		if err := c.session.Close(); err != nil {
			m.logger.Error("discord: disconnect failed", "agent", c.agentName, "error", err)
		}
	}
	return nil
}

func (c *connector) onError(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.logger.Warn("discord: session disconnected unexpectedly")
}

// onMessageCreate is the discordgo handler for inbound channel messages,
// implementing spec.md §4.6's routing: ignore the bot's own messages,
// apply the agent's channel/guild restriction, determine whether the bot
// was mentioned, and hand off to the shared channels.Handle router.
func (c *connector) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State.User != nil && m.Author != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if m.Author != nil && m.Author.Bot {
		return
	}
	if !c.channelAllowed(m.ChannelID) {
		return
	}

	ctx := context.Background()
	prompt := strings.TrimSpace(m.Content)
	if s.State.User != nil {
		for _, u := range m.Mentions {
			if u.ID == s.State.User.ID {
				// Strip the bot mention so the agent sees only the ask.
				prompt = strings.ReplaceAll(prompt, "<@"+s.State.User.ID+">", "")
				prompt = strings.ReplaceAll(prompt, "<@!"+s.State.User.ID+">", "")
				prompt = strings.TrimSpace(prompt)
				break
			}
		}
	}
	if prompt == "" {
		return
	}

	stopTyping := c.startTyping(ctx, m.ChannelID)
	defer stopTyping()

	sink := &discordSink{session: s, channelID: m.ChannelID, maxOutputChars: c.binding.MaxOutputChars}
	result := channels.Handle(ctx, c.fctx, c.sessions, platform, channels.OutputConfig{
		ToolResults:    c.binding.Output.ToolResults,
		SystemStatus:   c.binding.Output.SystemStatus,
		ResultSummary:  c.binding.Output.ResultSummary,
		Errors:         c.binding.Output.Errors,
		MaxOutputChars: c.binding.MaxOutputChars,
	}, channels.Inbound{
		AgentName:     c.agentName,
		Prompt:        prompt,
		ChannelID:     m.ChannelID,
		MessageID:     m.ID,
		SessionExpiry: time.Duration(c.binding.SessionExpiryHours) * time.Hour,
	}, sink)

	if result.Err != nil {
		c.fctx.Emitter().Emit("discord:message:error", MessageErrorEvent{
			AgentName: c.agentName, ChannelID: m.ChannelID, MessageID: m.ID, Error: result.Err.Error(),
		})
		c.logger.Error("discord: message handling failed", "channel", m.ChannelID, "message", m.ID, "error", result.Err)
		return
	}
	c.fctx.Emitter().Emit("discord:message:handled", MessageHandledEvent{
		AgentName: c.agentName, ChannelID: m.ChannelID, MessageID: m.ID, JobID: result.JobID,
	})
}

// channelAllowed reports whether the inbound channel is one this agent's
// binding accepts; an empty ChannelIDs list means every channel.
func (c *connector) channelAllowed(channelID string) bool {
	if len(c.binding.ChannelIDs) == 0 {
		return true
	}
	for _, id := range c.binding.ChannelIDs {
		if id == channelID {
			return true
		}
	}
	return false
}

// startTyping fires Discord's typing indicator and returns a stop
// function, per spec.md §6's startTyping()->stopFn contract. The
// indicator expires after ~10s on Discord's side, so this refreshes it
// every 8s until stopped.
func (c *connector) startTyping(ctx context.Context, channelID string) func() {
	stop := make(chan struct{})
	go func() {
		_ = c.session.ChannelTyping(channelID)
		ticker := time.NewTicker(8 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = c.session.ChannelTyping(channelID)
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

// MessageHandledEvent is the payload of discord:message:handled.
type MessageHandledEvent struct {
	AgentName string
	ChannelID string
	MessageID string
	JobID     string
}

// MessageErrorEvent is the payload of discord:message:error.
type MessageErrorEvent struct {
	AgentName string
	ChannelID string
	MessageID string
	Error     string
}
