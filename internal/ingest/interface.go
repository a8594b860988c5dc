package ingest

import "context"

// Transport delivers the raw audio of one call, one chunk at a time.
// Receive blocks until a chunk arrives, returns io.EOF when the peer closes
// the stream normally, and any other error on failure. Close may be called
// from a goroutine other than the one blocked in Receive and unblocks it.
type Transport interface {
	Receive() ([]byte, error)
	Close() error
}

// Dialer opens the ingest transport for a call.
type Dialer interface {
	Dial(ctx context.Context, callID string) (Transport, error)
}
