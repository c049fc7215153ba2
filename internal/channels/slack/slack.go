// Package slack implements the Slack chat connector manager of spec.md
// §4.7: unlike Discord's one-session-per-agent model, Slack uses a
// single shared Socket Mode connector with a channel->agent routing
// table built from every agent's chat.slack binding.
package slack

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/fleetops/fleetops/internal/channels"
	"github.com/fleetops/fleetops/internal/chatsession"
	"github.com/fleetops/fleetops/internal/fleet"
	"github.com/fleetops/fleetops/internal/fleetconfig"
)

// messageLimit is Slack's single-message length cap, per spec.md §4.7.
const messageLimit = 4000

const notConfiguredMessage = "This channel is not properly configured for any agent."

const fallbackMessage = "I've completed the task, but I don't have a specific response to share."

const errorMessageFormat = "Error: %s\n\nPlease try again or use /reset to start over."

// interChunkDelay paces multi-chunk replies under Slack's roughly
// one-message-per-second-per-channel posting limit.
const interChunkDelay = time.Second

var platform = channels.Platform{
	Name:            "slack",
	MessageLimit:    messageLimit,
	CodeFenceAware:  false,
	InterChunkDelay: interChunkDelay,
	NotConfigured:   notConfiguredMessage,
	Fallback:        fallbackMessage,
	ErrorPrefix:     errorMessageFormat,
}

// Manager is the single-connector, multi-agent Slack ChatManager
// (spec.md §4.7). It satisfies internal/fleet.ChatManager.
type Manager struct {
	fctx   fleet.Context
	logger *slog.Logger

	api    *slack.Client
	client *socketmode.Client
	botID  string

	sessions      *chatsession.Store
	output        map[string]channels.OutputConfig
	sessionExpiry map[string]time.Duration

	mu         sync.Mutex
	channelMap map[string]string // channelID -> agentName

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an uninitialized Slack Manager. Initialize must be called
// before Start.
func New() *Manager {
	return &Manager{}
}

// Name identifies this manager for logging, per internal/fleet.ChatManager.
func (m *Manager) Name() string { return "slack" }

// Initialize builds the channelMap from every agent's chat.slack binding
// and, if at least one binding has usable credentials, the shared
// socketmode client, per spec.md §4.7's "On initialize". A channel
// claimed by more than one agent logs a warning; the later-registered
// agent wins (spec.md §9's documented last-wins policy). Missing bot or
// app token env vars skip connector creation but leave Initialize
// returning successfully.
func (m *Manager) Initialize(fctx fleet.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fctx = fctx
	m.logger = fctx.Logger()
	m.channelMap = make(map[string]string)
	m.output = make(map[string]channels.OutputConfig)
	m.sessionExpiry = make(map[string]time.Duration)

	cfg := fctx.Config()
	if cfg == nil {
		return nil
	}
	m.sessions = chatsession.NewStore(fctx.StateDir())

	var botToken, appToken string
	var bound []fleetconfig.Agent
	for _, agent := range cfg.Agents {
		if agent.Chat == nil || agent.Chat.Slack == nil {
			continue
		}
		binding := agent.Chat.Slack
		bt := os.Getenv(binding.BotTokenEnv)
		at := os.Getenv(binding.AppTokenEnv)
		if strings.TrimSpace(bt) == "" || strings.TrimSpace(at) == "" {
			m.logger.Warn("slack: bot/app token env var not set, skipping agent", "agent", agent.Name)
			continue
		}
		botToken, appToken = bt, at
		bound = append(bound, agent)

		m.output[agent.Name] = channels.OutputConfig{
			ToolResults:    binding.Output.ToolResults,
			SystemStatus:   binding.Output.SystemStatus,
			ResultSummary:  binding.Output.ResultSummary,
			Errors:         binding.Output.Errors,
			MaxOutputChars: 0,
		}
		m.sessionExpiry[agent.Name] = time.Duration(binding.SessionExpiryHours) * time.Hour

		for _, channelID := range binding.ChannelIDs {
			if existing, ok := m.channelMap[channelID]; ok && existing != agent.Name {
				m.logger.Warn("slack: channel mapped to multiple agents, last registered wins", "channel", channelID, "previous_agent", existing, "agent", agent.Name)
			}
			m.channelMap[channelID] = agent.Name
		}
	}

	if len(bound) == 0 {
		return nil
	}

	m.api = slack.New(botToken, slack.OptionAppLevelToken(appToken))
	m.client = socketmode.New(m.api)
	return nil
}

// Start runs the Socket Mode event loop in the background, per spec.md
// §4.7. If Initialize found no usable binding, Start is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	api := m.api
	m.mu.Unlock()
	if client == nil {
		return nil
	}

	if auth, err := api.AuthTestContext(ctx); err != nil {
		m.logger.Error("slack: auth test failed", "error", err)
		m.fctx.Emitter().Emit("slack:error", ErrorEvent{Error: err.Error()})
	} else {
		m.mu.Lock()
		m.botID = auth.UserID
		m.mu.Unlock()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.consumeEvents(runCtx)
	}()
	go client.Run()
	return nil
}

// Stop stops routing inbound events. Socket Mode's client has no
// exported disconnect beyond process exit, so this only halts our own
// consumer goroutine, mirroring the fire-and-forget client.Run() idiom.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	m.wg.Wait()
	return nil
}

func (m *Manager) consumeEvents(ctx context.Context) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-client.Events:
			if !ok {
				return
			}
			m.handleSocketEvent(ctx, client, evt)
		}
	}
}

func (m *Manager) handleSocketEvent(ctx context.Context, client *socketmode.Client, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnectionError:
		m.logger.Error("slack: socket mode connection error")
		m.fctx.Emitter().Emit("slack:error", ErrorEvent{Error: "socket mode connection error"})
		return
	case socketmode.EventTypeEventsAPI:
	default:
		return
	}

	eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	if evt.Request != nil {
		client.Ack(*evt.Request)
	}
	if eventsAPIEvent.Type != slackevents.CallbackEvent {
		return
	}

	// Handle each message on its own goroutine: routing blocks until the
	// triggered job finishes, and one slow job must not stall the shared
	// socket event loop for every other channel.
	switch ev := eventsAPIEvent.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		go m.handleMessageEvent(ctx, ev)
	case *slackevents.AppMentionEvent:
		go m.handleAppMention(ctx, ev)
	}
}

func (m *Manager) handleMessageEvent(ctx context.Context, ev *slackevents.MessageEvent) {
	if ev.BotID != "" || ev.SubType != "" {
		return
	}
	m.mu.Lock()
	botID := m.botID
	m.mu.Unlock()
	if botID != "" && ev.User == botID {
		return
	}
	m.route(ctx, ev.Channel, ev.User, ev.ClientMsgID, ev.Text)
}

func (m *Manager) handleAppMention(ctx context.Context, ev *slackevents.AppMentionEvent) {
	m.mu.Lock()
	botID := m.botID
	m.mu.Unlock()
	text := ev.Text
	if botID != "" {
		text = strings.ReplaceAll(text, "<@"+botID+">", "")
	}
	m.route(ctx, ev.Channel, ev.User, ev.TimeStamp, text)
}

// route implements spec.md §4.7's "Message routing": look up
// channelMap[channelID], reply "not properly configured" on miss, else
// hand off to the shared channels.Handle router.
func (m *Manager) route(ctx context.Context, channelID, userID, messageID, text string) {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return
	}

	m.mu.Lock()
	agentName, ok := m.channelMap[channelID]
	out := m.output[agentName]
	expiry := m.sessionExpiry[agentName]
	api := m.api
	m.mu.Unlock()

	sink := &slackSink{api: api, channelID: channelID}
	if !ok {
		_ = sink.SendChunk(ctx, notConfiguredMessage)
		m.logger.Error("slack: message for unmapped channel", "channel", channelID)
		return
	}

	result := channels.Handle(ctx, m.fctx, m.sessions, platform, out, channels.Inbound{
		AgentName:     agentName,
		Prompt:        prompt,
		ChannelID:     channelID,
		MessageID:     messageID,
		SessionExpiry: expiry,
	}, sink)

	if result.Err != nil {
		m.fctx.Emitter().Emit("slack:message:error", MessageErrorEvent{
			AgentName: agentName, ChannelID: channelID, MessageID: messageID, Error: result.Err.Error(),
		})
		m.logger.Error("slack: message handling failed", "channel", channelID, "error", result.Err)
		return
	}
	m.fctx.Emitter().Emit("slack:message:handled", MessageHandledEvent{
		AgentName: agentName, ChannelID: channelID, MessageID: messageID, JobID: result.JobID,
	})
}

// MessageHandledEvent is the payload of slack:message:handled.
type MessageHandledEvent struct {
	AgentName string
	ChannelID string
	MessageID string
	JobID     string
}

// MessageErrorEvent is the payload of slack:message:error.
type MessageErrorEvent struct {
	AgentName string
	ChannelID string
	MessageID string
	Error     string
}

// ErrorEvent is the payload of slack:error, emitted for connector-level
// failures (auth test, Socket Mode connection errors) that aren't tied
// to a single inbound message.
type ErrorEvent struct {
	Error string
}
