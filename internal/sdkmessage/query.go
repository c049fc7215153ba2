package sdkmessage

import "context"

// QueryOptions carries the inputs an invocation needs from the caller.
// Resume, when set, asks the external LLM surface to continue a prior
// session instead of starting fresh. Runtime is the agent's runtime tag
// (default "sdk"), used by implementations that dispatch to more than
// one backend.
type QueryOptions struct {
	Prompt  string
	WorkDir string
	Model   string
	Resume  string
	Runtime string
}

// Stream is an async source of Message values, one per produced SDK
// message, terminated by Close returning io.EOF-shaped nil-after-done
// semantics via Next's second return.
type Stream interface {
	// Next blocks until the next message is available, the stream ends
	// (ok=false, err=nil), or an error occurs (ok=false, err!=nil).
	Next(ctx context.Context) (msg Message, ok bool, err error)
	// Close releases stream resources. Safe to call multiple times.
	Close() error
}

// Query is the external LLM invocation surface. The core depends only on
// this interface; the concrete implementation (an actual model backend)
// is an out-of-scope collaborator.
type Query interface {
	Start(ctx context.Context, opts QueryOptions) (Stream, error)
}
