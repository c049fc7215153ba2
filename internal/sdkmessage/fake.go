package sdkmessage

import (
	"context"
	"encoding/json"
)

// FakeQuery is a deterministic Query implementation for tests. Each Start
// call pops the next scripted response off Scripts (or returns a single
// default assistant+result pair once Scripts is empty or used up).
type FakeQuery struct {
	Scripts   []FakeScript
	callIndex int
}

// FakeScript describes one scripted invocation: the messages to emit in
// order, and an optional error to return instead of completing cleanly.
type FakeScript struct {
	Messages  []Message
	StartErr  error
	StreamErr error
}

type fakeStream struct {
	messages []Message
	err      error
	pos      int
}

func (f *FakeQuery) Start(ctx context.Context, opts QueryOptions) (Stream, error) {
	idx := f.callIndex
	f.callIndex++
	if idx >= len(f.Scripts) {
		return &fakeStream{messages: defaultScript()}, nil
	}
	s := f.Scripts[idx]
	if s.StartErr != nil {
		return nil, s.StartErr
	}
	return &fakeStream{messages: s.Messages, err: s.StreamErr}, nil
}

func (s *fakeStream) Next(ctx context.Context) (Message, bool, error) {
	select {
	case <-ctx.Done():
		return Message{}, false, ctx.Err()
	default:
	}
	if s.pos >= len(s.messages) {
		if s.err != nil {
			err := s.err
			s.err = nil
			return Message{}, false, err
		}
		return Message{}, false, nil
	}
	m := s.messages[s.pos]
	s.pos++
	return m, true, nil
}

func (s *fakeStream) Close() error { return nil }

func defaultScript() []Message {
	text, _ := json.Marshal("Execute your configured task")
	return []Message{
		{Type: TypeAssistant, SessionID: "fake-session", Message: &InnerMessage{Role: "assistant", Content: text}},
		{Type: TypeResult, Result: &Result{Success: true, Summary: "done"}},
	}
}

// TextMessage is a convenience constructor used by tests that script
// assistant text replies.
func TextMessage(sessionID, text string) Message {
	raw, _ := json.Marshal(text)
	return Message{Type: TypeAssistant, SessionID: sessionID, Message: &InnerMessage{Role: "assistant", Content: raw}}
}

// ResultMessage is a convenience constructor for a terminal result message.
func ResultMessage(success bool, summary string) Message {
	return Message{Type: TypeResult, Result: &Result{Success: success, Summary: summary}}
}

// ErrorMessage is a convenience constructor for an in-stream error message.
func ErrorMessage(msg string) Message {
	return Message{Type: TypeError, Error: &ErrorInfo{Message: msg}}
}
