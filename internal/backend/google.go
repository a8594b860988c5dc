package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
)

const defaultRecognizeTimeout = 15 * time.Second

// GoogleConfig points the batch backend at a streaming-recognize HTTP
// endpoint. Every flushed buffer is one synchronous round trip.
type GoogleConfig struct {
	RecognizeURL string
	Language     string
	SampleRate   int
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// GoogleBackend is the batch variant: no persistent per-call connection,
// Start and Stop are bookkeeping only.
type GoogleBackend struct {
	cfg  GoogleConfig
	sink Sink
	http *http.Client
	log  *slog.Logger
}

func NewGoogleBackend(cfg GoogleConfig, sink Sink, log *slog.Logger) *GoogleBackend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRecognizeTimeout
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if log == nil {
		log = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &GoogleBackend{
		cfg:  cfg,
		sink: sink,
		http: client,
		log:  log.With("component", "google_backend"),
	}
}

func (b *GoogleBackend) Start(ctx context.Context, callID, tenantUUID string, opts Options) (Handle, error) {
	language := opts.Language
	if language == "" {
		language = b.cfg.Language
	}
	b.log.Info("google backend ready", "call_id", callID)
	return &googleHandle{
		backend:    b,
		callID:     callID,
		tenantUUID: tenantUUID,
		language:   language,
	}, nil
}

type googleHandle struct {
	backend    *GoogleBackend
	callID     string
	tenantUUID string
	language   string
}

type recognizeResponse struct {
	Results []struct {
		IsFinal      bool `json:"is_final"`
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// ProcessChunk sends the buffer for recognition and publishes every final
// alternative. The round trip is bounded by the configured timeout; expiry
// is a BackendTimeout, not a silent drop.
func (h *googleHandle) ProcessChunk(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	b := h.backend

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.RecognizeURL, bytes.NewReader(chunk))
	if err != nil {
		return fmt.Errorf("build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Language-Code", h.language)
	req.Header.Set("X-Sample-Rate", strconv.Itoa(b.cfg.SampleRate))

	resp, err := b.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("recognize %d bytes: %w", len(chunk), shared.ErrBackendTimeout)
		}
		return fmt.Errorf("recognize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("recognize returned %d: %s", resp.StatusCode, body)
	}

	var decoded recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode recognize response: %w", err)
	}

	b.log.Debug("recognize results", "call_id", h.callID, "count", len(decoded.Results))
	for _, result := range decoded.Results {
		if !result.IsFinal || len(result.Alternatives) == 0 {
			continue
		}
		b.sink.PublishTranscription(h.callID, h.tenantUUID, result.Alternatives[0].Transcript)
	}
	return nil
}

func (h *googleHandle) Stop() error {
	h.backend.log.Info("google backend stopped", "call_id", h.callID)
	return nil
}
