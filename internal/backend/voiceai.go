package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
	"github.com/wazo-platform/wazo-stt-gateway/internal/voiceai"
)

// VoiceAIConfig points the duplex backend at the voice AI websocket service.
type VoiceAIConfig struct {
	URI        string
	Language   string
	SampleRate int
	UseAI      bool

	// Client tuning, zero values use the voiceai defaults.
	MaxAttempts   int
	RetryDelay    time.Duration
	StartPoll     time.Duration
	StartAttempts int
	StopTimeout   time.Duration
}

// VoiceAIBackend is the duplex variant: one reconnecting websocket client per
// call, results delivered asynchronously through the sink.
type VoiceAIBackend struct {
	cfg  VoiceAIConfig
	sink Sink
	log  *slog.Logger
}

func NewVoiceAIBackend(cfg VoiceAIConfig, sink Sink, log *slog.Logger) *VoiceAIBackend {
	if log == nil {
		log = slog.Default()
	}
	return &VoiceAIBackend{
		cfg:  cfg,
		sink: sink,
		log:  log.With("component", "voiceai_backend"),
	}
}

func (b *VoiceAIBackend) Start(ctx context.Context, callID, tenantUUID string, opts Options) (Handle, error) {
	language := opts.Language
	if language == "" {
		language = b.cfg.Language
	}
	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = b.cfg.SampleRate
	}
	useAI := opts.UseAI || b.cfg.UseAI

	client := voiceai.New(voiceai.Config{
		URI:           b.cfg.URI,
		Language:      language,
		UseAI:         useAI,
		SampleRate:    sampleRate,
		MaxAttempts:   b.cfg.MaxAttempts,
		RetryDelay:    b.cfg.RetryDelay,
		StartPoll:     b.cfg.StartPoll,
		StartAttempts: b.cfg.StartAttempts,
		StopTimeout:   b.cfg.StopTimeout,
		Log:           b.log.With("call_id", callID),
	})

	callbacks := voiceai.Callbacks{
		OnTranscription: func(text string) {
			b.sink.PublishTranscription(callID, tenantUUID, text)
		},
	}
	if useAI {
		callbacks.OnAIResponse = func(text string) {
			b.sink.PublishAIResponse(callID, tenantUUID, text)
		}
	}

	b.log.Info("starting voice ai backend", "call_id", callID, "use_ai", useAI)
	if !client.Start(callbacks) {
		client.Stop()
		return nil, fmt.Errorf("voice ai client for call %s: %w", callID, shared.ErrBackendStartFailed)
	}

	return &voiceAIHandle{client: client, callID: callID, log: b.log}, nil
}

type voiceAIHandle struct {
	client *voiceai.Client
	callID string
	log    *slog.Logger
}

// ProcessChunk hands the buffer to the client's outbound queue and returns
// immediately; transcriptions surface later via the sink.
func (h *voiceAIHandle) ProcessChunk(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	h.client.Send(chunk)
	return nil
}

func (h *voiceAIHandle) Stop() error {
	h.log.Info("voice ai backend stopped", "call_id", h.callID)
	h.client.Stop()
	return nil
}
