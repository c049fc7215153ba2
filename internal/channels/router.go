package channels

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetops/fleetops/internal/chatsession"
	"github.com/fleetops/fleetops/internal/fleet"
	"github.com/fleetops/fleetops/internal/job"
	"github.com/fleetops/fleetops/internal/sdkmessage"
)

// OutputConfig toggles which non-text message classes get rendered as
// embeds, per spec.md §4.6 step 4 / §4.7 (Discord's output.* flags,
// mirrored by Slack).
type OutputConfig struct {
	ToolResults    bool
	SystemStatus   bool
	ResultSummary  bool
	Errors         bool
	MaxOutputChars int
}

// Platform carries the per-connector constants the router needs:
// message-length cap and code-fence awareness for SplitResponse, the
// inter-chunk send delay, and the canned strings spec.md §4.6/§4.7
// specify verbatim.
type Platform struct {
	Name            string
	MessageLimit    int
	CodeFenceAware  bool
	InterChunkDelay time.Duration
	NotConfigured   string
	Fallback        string
	ErrorPrefix     string
}

// Sink is the minimal send surface a connector exposes to the router:
// one already-platform-formatted text chunk, or one embed. Connectors
// implement this over their own client (discordgo's ChannelMessageSend,
// slack-go's PostMessage, ...).
type Sink interface {
	SendChunk(ctx context.Context, text string) error
	SendEmbed(ctx context.Context, e Embed) error
}

// Inbound is the platform-agnostic shape of one routed chat message, per
// spec.md §4.6's inbound message event.
type Inbound struct {
	AgentName string
	Prompt    string
	ChannelID string
	MessageID string
	// SessionExpiry is the agent binding's session_expiry_hours, already
	// converted to a duration. Zero means sessions never age out, per
	// chatsession.Record.Expired.
	SessionExpiry time.Duration
}

// Handled is what Handle reports back to the connector for logging and
// for the discord:message:handled / slack:message:handled events.
type Handled struct {
	JobID string
	Err   error
}

// pendingTool tracks a tool_use block awaiting its matching tool_result,
// so the embed built in step 4 can carry both the input summary and the
// output/duration.
type pendingTool struct {
	block     sdkmessage.ContentBlock
	startedAt time.Time
}

// Handle implements the body of spec.md §4.6's "Message handling" steps
// 1-8, shared between the Discord and Slack managers (§4.7: "Streaming,
// session store, and error handling mirror Discord"). It blocks until
// the triggered job reaches a terminal state, since callers need the
// final session id (step 7) and the success/failure outcome (steps 5-6)
// before they can reply, even though FleetManager.Trigger itself returns
// as soon as the job is created (spec.md §4.3 step 7).
func Handle(ctx context.Context, fctx fleet.Context, sessions *chatsession.Store, platform Platform, out OutputConfig, in Inbound, sink Sink) Handled {
	cfg := fctx.Config()
	if cfg == nil {
		return replyNotConfigured(ctx, platform, sink)
	}
	if _, ok := cfg.AgentByName(in.AgentName); !ok {
		return replyNotConfigured(ctx, platform, sink)
	}

	resume := ""
	if rec, ok, err := sessions.Get(in.AgentName, in.ChannelID); err != nil {
		fctx.Logger().Warn("chat: session lookup failed, starting fresh", "platform", platform.Name, "agent", in.AgentName, "channel", in.ChannelID, "error", err)
	} else if ok {
		if rec.Expired(time.Now().UTC(), in.SessionExpiry) {
			fctx.Logger().Info("chat: session expired, starting fresh", "platform", platform.Name, "agent", in.AgentName, "channel", in.ChannelID)
		} else {
			resume = rec.SessionID
		}
	}

	sentAny := false
	pending := map[string]pendingTool{}
	var sessionID string

	onMessage := func(_ context.Context, msg sdkmessage.Message) {
		if msg.SessionID != "" {
			sessionID = msg.SessionID
		}
		switch msg.Type {
		case sdkmessage.TypeAssistant:
			if text := sdkmessage.ExtractText(msg); text != "" {
				if err := sendResponse(ctx, platform, sink, text); err == nil {
					sentAny = true
				}
			}
			for _, use := range sdkmessage.ExtractToolUseBlocks(msg) {
				pending[use.ID] = pendingTool{block: use, startedAt: time.Now().UTC()}
			}
		case sdkmessage.TypeUser:
			if !out.ToolResults {
				return
			}
			for _, result := range sdkmessage.ExtractToolResults(msg) {
				pt, ok := pending[result.ToolUseID]
				if !ok {
					continue
				}
				delete(pending, result.ToolUseID)
				result := result
				embed := BuildToolEmbed(pt.block, &result, time.Since(pt.startedAt), out.MaxOutputChars)
				if sink.SendEmbed(ctx, embed) == nil {
					sentAny = true
				}
			}
		case sdkmessage.TypeSystem:
			if out.SystemStatus {
				if sink.SendEmbed(ctx, Embed{Title: "System", Description: sdkmessage.ExtractText(msg), Color: ColorSuccess}) == nil {
					sentAny = true
				}
			}
		case sdkmessage.TypeResult:
			if out.ResultSummary && msg.Result != nil {
				color := ColorSuccess
				if !msg.Result.Success {
					color = ColorError
				}
				if sink.SendEmbed(ctx, Embed{Title: "Result", Description: msg.Result.Summary, Color: color}) == nil {
					sentAny = true
				}
			}
		case sdkmessage.TypeError:
			if out.Errors {
				errMsg := ""
				if msg.Error != nil {
					errMsg = msg.Error.Message
				}
				if sink.SendEmbed(ctx, Embed{Title: "Error", Description: errMsg, Color: ColorError}) == nil {
					sentAny = true
				}
			}
		}
	}

	// Subscribe before triggering: Trigger hands the job to the executor's
	// goroutine immediately, so waiting to subscribe until after it
	// returns could miss a terminal event that fires before this
	// goroutine gets scheduled again.
	terminals := newTerminalWatcher(fctx.Emitter())
	defer terminals.stop()

	result, err := fctx.Trigger(ctx, in.AgentName, "", fleet.TriggerOptions{
		Prompt:      in.Prompt,
		Resume:      resume,
		TriggerType: job.TriggerChat,
		OnMessage:   onMessage,
	})
	if err != nil {
		sendResponse(ctx, platform, sink, fmt.Sprintf(platform.ErrorPrefix, err.Error()))
		return Handled{Err: err}
	}

	term, waitErr := terminals.await(ctx, result.JobID)
	if waitErr != nil {
		return Handled{JobID: result.JobID, Err: waitErr}
	}

	if term.Status == job.StatusFailed {
		errMsg := term.ErrorMessage
		if errMsg == "" {
			errMsg = "the job failed"
		}
		sendResponse(ctx, platform, sink, fmt.Sprintf(platform.ErrorPrefix, errMsg))
		return Handled{JobID: result.JobID, Err: fmt.Errorf("chat: job %s failed: %s", result.JobID, errMsg)}
	}

	if !sentAny {
		sendResponse(ctx, platform, sink, platform.Fallback)
	}

	if sessionID != "" {
		if err := sessions.Set(in.AgentName, in.ChannelID, sessionID, time.Now().UTC()); err != nil {
			fctx.Logger().Warn("chat: failed to persist session", "platform", platform.Name, "agent", in.AgentName, "channel", in.ChannelID, "error", err)
		}
	}

	return Handled{JobID: result.JobID}
}

func replyNotConfigured(ctx context.Context, platform Platform, sink Sink) Handled {
	_ = sink.SendChunk(ctx, platform.NotConfigured)
	return Handled{Err: fmt.Errorf("chat: agent not configured")}
}

// sendResponse splits text per the platform's limit/fence rules and
// sends each chunk in order with a small inter-chunk delay, per spec.md
// §4.6's sendResponse.
func sendResponse(ctx context.Context, platform Platform, sink Sink, text string) error {
	chunks := SplitResponse(text, platform.MessageLimit, platform.CodeFenceAware)
	for i, chunk := range chunks {
		if err := sink.SendChunk(ctx, chunk); err != nil {
			return err
		}
		if i < len(chunks)-1 && platform.InterChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(platform.InterChunkDelay):
			}
		}
	}
	return nil
}

// terminalWatcher subscribes to every job-terminal event up front (see
// Handle's comment on why: Trigger can race its own caller) and lets the
// caller block on a specific job id after the fact. Events that arrive
// before await is called land in seen; events that arrive while await
// is blocked are delivered through that job's own waiter channel, so an
// unrelated burst of terminal events can never crowd out the one the
// caller is waiting for.
type terminalWatcher struct {
	offs []func()

	mu      sync.Mutex
	seen    map[string]*job.Job
	waiters map[string]chan *job.Job
}

func newTerminalWatcher(emitter *fleet.Bus) *terminalWatcher {
	w := &terminalWatcher{
		seen:    make(map[string]*job.Job),
		waiters: make(map[string]chan *job.Job),
	}

	notify := func(payload any) {
		te, ok := payload.(job.JobTerminalEvent)
		if !ok || te.Job == nil {
			return
		}
		w.mu.Lock()
		w.seen[te.Job.ID] = te.Job
		waiter := w.waiters[te.Job.ID]
		delete(w.waiters, te.Job.ID)
		w.mu.Unlock()
		if waiter != nil {
			// Buffered with capacity 1 and sent at most once; never blocks
			// even if the awaiting goroutine already gave up on ctx.
			waiter <- te.Job
		}
	}

	w.offs = append(w.offs,
		emitter.On(job.EventJobCompleted, notify),
		emitter.On(job.EventJobFailed, notify),
		emitter.On(job.EventJobCancelled, notify),
	)
	return w
}

func (w *terminalWatcher) stop() {
	for _, off := range w.offs {
		off()
	}
}

// await blocks until jobID reaches a terminal status, observed via the
// job:completed/failed/cancelled events rather than polling, since
// FleetManager.Trigger itself returns before the job finishes (spec.md
// §4.3 step 7's "Chat paths that need the final result await the
// executor internally").
func (w *terminalWatcher) await(ctx context.Context, jobID string) (*job.Job, error) {
	w.mu.Lock()
	if j, ok := w.seen[jobID]; ok {
		w.mu.Unlock()
		return j, nil
	}
	waiter := make(chan *job.Job, 1)
	w.waiters[jobID] = waiter
	w.mu.Unlock()

	select {
	case j := <-waiter:
		return j, nil
	case <-ctx.Done():
		w.mu.Lock()
		delete(w.waiters, jobID)
		w.mu.Unlock()
		return nil, ctx.Err()
	}
}
