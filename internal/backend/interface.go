package backend

import "context"

// Kind selects a transcription backend implementation.
type Kind string

const (
	KindGoogle  Kind = "google"
	KindVoiceAI Kind = "voice_ai"
)

// Options carries the per-call knobs a caller may override at start time.
type Options struct {
	Language   string
	SampleRate int
	// UseAI asks the duplex backend to also return AI agent responses on a
	// secondary channel. Ignored by batch backends.
	UseAI bool
}

// Sink receives every final result a backend produces. Implementations must
// be safe for concurrent use; duplex backends invoke it from their own
// receive lanes.
type Sink interface {
	PublishTranscription(callID, tenantUUID, text string)
	PublishAIResponse(callID, tenantUUID, text string)
}

// Backend converts raw audio into transcriptions. Start allocates the
// per-call resources and returns the handle the session feeds its flushed
// buffers to. Start must be safe to call concurrently for different calls;
// errors wrap shared.ErrBackendStartFailed.
type Backend interface {
	Start(ctx context.Context, callID, tenantUUID string, opts Options) (Handle, error)
}

// Handle is the per-call side of a backend. ProcessChunk accepts one flushed
// buffer; results reach the Sink either before ProcessChunk returns (batch)
// or later from a backend-internal lane (duplex). Stop releases the per-call
// resources and is idempotent.
type Handle interface {
	ProcessChunk(ctx context.Context, chunk []byte) error
	Stop() error
}
