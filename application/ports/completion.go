package ports

import "context"

// CompletionStream is a lazy, finite, non-restartable sequence of text
// fragments produced by the completion provider. Recv returns io.EOF when
// the provider signals completion; any other error is terminal.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// CompletionClient is the port to the hosted completion provider.
type CompletionClient interface {
	// Complete blocks until the provider returns the full roadmap text
	Complete(ctx context.Context, goal string) (string, error)

	// Stream issues the completion request and returns once the response
	// is established; fragments are then read through the stream. Errors
	// returned here cover connection establishment only.
	Stream(ctx context.Context, goal string) (CompletionStream, error)
}
