package assistant

import "context"

// Boundary is the chat backend: given the conversation so far it returns the
// next assistant turn. Implementations block until the answer is complete.
type Boundary interface {
	Chat(ctx context.Context, conv Conversation) (string, error)
}

// BoundaryFunc adapts a function to Boundary.
type BoundaryFunc func(ctx context.Context, conv Conversation) (string, error)

// Chat calls f.
func (f BoundaryFunc) Chat(ctx context.Context, conv Conversation) (string, error) {
	return f(ctx, conv)
}

// Logger receives request timings and failures from backend clients.
type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}
