package stt

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/wazo-platform/wazo-stt-gateway/internal/backend"
	"github.com/wazo-platform/wazo-stt-gateway/internal/ingest"
)

type SessionState int32

const (
	StateStarting SessionState = iota
	StateStreaming
	StateStopping
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session is the runtime state of one call's transcription pipeline. The
// buffer is owned exclusively by the session's own ingest worker; only the
// manager's table lock guards registration and removal.
type Session struct {
	CallID     string
	TenantUUID string

	state  atomic.Int32
	buf    bytes.Buffer
	handle backend.Handle

	transport ingest.Transport
	ctx       context.Context
	cancel    context.CancelFunc

	dump       *os.File
	dumpFailed bool

	log *slog.Logger
}

func newSession(callID, tenantUUID string, log *slog.Logger) *Session {
	s := &Session{
		CallID:     callID,
		TenantUUID: tenantUUID,
		log:        log.With("call_id", callID),
	}
	s.state.Store(int32(StateStarting))
	return s
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(st SessionState) {
	s.state.Store(int32(st))
}

func (s *Session) closeDump() {
	if s.dump == nil {
		return
	}
	if err := s.dump.Close(); err != nil {
		s.log.Warn("failed to close audio dump", "error", err)
	}
	s.dump = nil
}
