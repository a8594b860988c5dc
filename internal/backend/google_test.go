package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
)

type recordedResult struct {
	CallID     string
	TenantUUID string
	Text       string
	AIResponse bool
}

type recordingSink struct {
	mu      sync.Mutex
	results []recordedResult
}

func (s *recordingSink) PublishTranscription(callID, tenantUUID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, recordedResult{CallID: callID, TenantUUID: tenantUUID, Text: text})
}

func (s *recordingSink) PublishAIResponse(callID, tenantUUID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, recordedResult{CallID: callID, TenantUUID: tenantUUID, Text: text, AIResponse: true})
}

func (s *recordingSink) snapshot() []recordedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedResult, len(s.results))
	copy(out, s.results)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGoogleBackend_PublishesFinalResults(t *testing.T) {
	var gotBody []byte
	var gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotLanguage = r.Header.Get("X-Language-Code")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"is_final":true,"alternatives":[{"transcript":"bonjour"},{"transcript":"bon jour"}]},
			{"is_final":false,"alternatives":[{"transcript":"partial"}]},
			{"is_final":true,"alternatives":[{"transcript":"au revoir"}]},
			{"is_final":true,"alternatives":[]}
		]}`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	b := NewGoogleBackend(GoogleConfig{RecognizeURL: srv.URL, Language: "fr_FR"}, sink, discardLogger())

	handle, err := b.Start(context.Background(), "c1", "t1", Options{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := handle.ProcessChunk(context.Background(), []byte("pcm-audio")); err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}

	if string(gotBody) != "pcm-audio" {
		t.Errorf("request body = %q, want raw chunk", gotBody)
	}
	if gotLanguage != "fr_FR" {
		t.Errorf("language header = %q, want fr_FR", gotLanguage)
	}

	results := sink.snapshot()
	if len(results) != 2 {
		t.Fatalf("published %d results, want 2 (finals only, first alternative)", len(results))
	}
	if results[0].Text != "bonjour" || results[1].Text != "au revoir" {
		t.Errorf("results = %+v", results)
	}
	for _, r := range results {
		if r.CallID != "c1" || r.TenantUUID != "t1" || r.AIResponse {
			t.Errorf("bad result scoping: %+v", r)
		}
	}

	if err := handle.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := handle.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func TestGoogleBackend_EmptyChunkIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty chunk")
	}))
	defer srv.Close()

	sink := &recordingSink{}
	b := NewGoogleBackend(GoogleConfig{RecognizeURL: srv.URL}, sink, discardLogger())
	handle, _ := b.Start(context.Background(), "c1", "t1", Options{})
	if err := handle.ProcessChunk(context.Background(), nil); err != nil {
		t.Fatalf("ProcessChunk(nil) failed: %v", err)
	}
	if len(sink.snapshot()) != 0 {
		t.Error("no results expected")
	}
}

func TestGoogleBackend_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	sink := &recordingSink{}
	b := NewGoogleBackend(GoogleConfig{RecognizeURL: srv.URL, Timeout: 20 * time.Millisecond}, sink, discardLogger())
	handle, _ := b.Start(context.Background(), "c1", "t1", Options{})

	err := handle.ProcessChunk(context.Background(), []byte("audio"))
	if !errors.Is(err, shared.ErrBackendTimeout) {
		t.Errorf("err = %v, want wrapped ErrBackendTimeout", err)
	}
}

func TestGoogleBackend_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sink := &recordingSink{}
	b := NewGoogleBackend(GoogleConfig{RecognizeURL: srv.URL}, sink, discardLogger())
	handle, _ := b.Start(context.Background(), "c1", "t1", Options{})

	if err := handle.ProcessChunk(context.Background(), []byte("audio")); err == nil {
		t.Error("expected an error for a non-200 response")
	}
	if len(sink.snapshot()) != 0 {
		t.Error("no results expected on server error")
	}
}

func TestGoogleBackend_LanguageOverride(t *testing.T) {
	var gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLanguage = r.Header.Get("X-Language-Code")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	b := NewGoogleBackend(GoogleConfig{RecognizeURL: srv.URL, Language: "fr_FR"}, &recordingSink{}, discardLogger())
	handle, _ := b.Start(context.Background(), "c1", "t1", Options{Language: "en_US"})
	if err := handle.ProcessChunk(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}
	if gotLanguage != "en_US" {
		t.Errorf("language header = %q, want per-call override en_US", gotLanguage)
	}
}
