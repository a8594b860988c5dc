package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/wazo-platform/wazo-stt-gateway/internal/backend"
	"github.com/wazo-platform/wazo-stt-gateway/internal/ingest"
	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
)

// DefaultFlushThreshold is how many buffered bytes trigger a flush to the
// backend. The value trades per-request overhead against latency.
const DefaultFlushThreshold = 64 * 1024

// Publisher is the outbound event-bus boundary. Failures are logged by the
// manager and never reach the session.
type Publisher interface {
	PublishTranscription(ctx context.Context, callID, tenantUUID, text string) error
	PublishAIResponse(ctx context.Context, callID, tenantUUID, text string) error
}

// Recorder keeps best-effort call lifecycle bookkeeping. Optional.
type Recorder interface {
	Open(ctx context.Context, callID, tenantUUID, backendKind string) error
	Close(ctx context.Context, callID string) error
}

// BackendFactory builds the shared backend wired to the manager's sink.
// *backend.Factory satisfies it.
type BackendFactory interface {
	Create(kind backend.Kind, sink backend.Sink) (backend.Backend, error)
}

type ManagerConfig struct {
	Factory        BackendFactory
	Kind           backend.Kind
	Dialer         ingest.Dialer
	Publisher      Publisher
	Recorder       Recorder
	DumpDir        string
	FlushThreshold int
	Log            *slog.Logger
}

// Manager owns every live transcription session: one ingest worker per call,
// a shared backend, and the forwarding of results to the bus. The session
// table is the only state shared across calls and is mutated under mu.
type Manager struct {
	backend        backend.Backend
	kind           backend.Kind
	dialer         ingest.Dialer
	publisher      Publisher
	recorder       Recorder
	dumpDir        string
	flushThreshold int

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup

	log *slog.Logger
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = DefaultFlushThreshold
	}

	m := &Manager{
		kind:           cfg.Kind,
		dialer:         cfg.Dialer,
		publisher:      cfg.Publisher,
		recorder:       cfg.Recorder,
		dumpDir:        cfg.DumpDir,
		flushThreshold: cfg.FlushThreshold,
		sessions:       make(map[string]*Session),
		log:            cfg.Log.With("component", "stt_manager"),
	}

	b, err := cfg.Factory.Create(cfg.Kind, m)
	if err != nil {
		return nil, err
	}
	m.backend = b

	if m.dumpDir != "" {
		if err := os.MkdirAll(m.dumpDir, 0o755); err != nil {
			m.log.Warn("cannot create dump directory, dumping disabled", "dir", m.dumpDir, "error", err)
			m.dumpDir = ""
		}
	}
	return m, nil
}

// Start creates the session for a call: backend handle first, then the
// ingest transport, then the worker. The call id is reserved in the table up
// front so two concurrent starts can never both win.
func (m *Manager) Start(ctx context.Context, callID, tenantUUID string, opts backend.Options) error {
	if callID == "" {
		return fmt.Errorf("call id required")
	}

	sess := newSession(callID, tenantUUID, m.log)

	m.mu.Lock()
	if _, exists := m.sessions[callID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("call %s: %w", callID, shared.ErrAlreadyActive)
	}
	m.sessions[callID] = sess
	m.mu.Unlock()

	handle, err := m.backend.Start(ctx, callID, tenantUUID, opts)
	if err != nil {
		m.unregister(sess)
		return fmt.Errorf("call %s: %w", callID, err)
	}
	sess.handle = handle

	transport, err := m.dialer.Dial(ctx, callID)
	if err != nil {
		if stopErr := handle.Stop(); stopErr != nil {
			m.log.Warn("backend stop after failed dial", "call_id", callID, "error", stopErr)
		}
		m.unregister(sess)
		return fmt.Errorf("call %s: %w", callID, err)
	}
	sess.transport = transport

	if m.recorder != nil {
		if err := m.recorder.Open(ctx, callID, tenantUUID, string(m.kind)); err != nil {
			m.log.Warn("call record open failed", "call_id", callID, "error", err)
		}
	}

	sess.ctx, sess.cancel = context.WithCancel(context.Background())

	// A Stop may have raced in while the backend and transport were being
	// acquired. The worker only launches if the reservation still stands;
	// otherwise this side owns releasing everything it acquired.
	m.mu.Lock()
	if current, ok := m.sessions[callID]; !ok || current != sess {
		m.mu.Unlock()
		m.teardown(sess)
		return fmt.Errorf("call %s: session stopped during start", callID)
	}
	sess.setState(StateStreaming)
	m.wg.Add(1)
	m.mu.Unlock()

	go m.ingestLoop(sess)

	m.log.Info("transcription session started",
		"call_id", callID,
		"tenant_uuid", tenantUUID,
		"backend", m.kind)
	return nil
}

// Stop tears one session down. Returns false when the call has no session.
// Buffered-but-unflushed audio is discarded.
func (m *Manager) Stop(ctx context.Context, callID, tenantUUID string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[callID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, callID)
	starting := sess.State() == StateStarting
	m.mu.Unlock()

	// A session still being assembled has no resources this side may touch;
	// removing the reservation makes Start's registration re-check fail and
	// release whatever it acquired.
	if starting {
		m.log.Info("transcription session stopped during start", "call_id", callID, "tenant_uuid", tenantUUID)
		return true
	}

	sess.setState(StateStopping)
	m.teardown(sess)

	m.log.Info("transcription session stopped", "call_id", callID, "tenant_uuid", tenantUUID)
	return true
}

// StopAll drains every session at shutdown. A second sweep catches sessions
// registered between the snapshot and the end of the first sweep; afterwards
// the worker pool is released.
func (m *Manager) StopAll(ctx context.Context) {
	m.log.Info("stopping all transcription sessions", "count", m.SessionCount())

	for sweep := 0; sweep < 2; sweep++ {
		m.mu.Lock()
		ids := make([]string, 0, len(m.sessions))
		for id := range m.sessions {
			ids = append(ids, id)
		}
		m.mu.Unlock()

		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			m.Stop(ctx, id, "")
		}
	}

	m.wg.Wait()
}

func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type SessionInfo struct {
	CallID     string `json:"call_id"`
	TenantUUID string `json:"tenant_uuid"`
	State      string `json:"state"`
}

func (m *Manager) ListSessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, SessionInfo{
			CallID:     s.CallID,
			TenantUUID: s.TenantUUID,
			State:      s.State().String(),
		})
	}
	return sessions
}

// ingestLoop reads the call's audio in arrival order, buffers it and flushes
// whole buffers once the threshold is crossed. On transport close or failure
// the residual buffer is flushed before teardown; an explicit Stop cancels
// the worker instead and the residue is discarded.
func (m *Manager) ingestLoop(sess *Session) {
	defer m.wg.Done()

	for {
		chunk, err := sess.transport.Receive()
		if err != nil {
			if sess.ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				sess.log.Info("audio stream closed by peer")
			} else {
				sess.log.Error("audio stream failed", "error", err)
			}
			if flushErr := m.flushBuffer(sess); flushErr != nil {
				sess.log.Error("residual flush failed", "error", flushErr)
			}
			m.finish(sess)
			return
		}

		if len(chunk) == 0 {
			continue
		}
		sess.buf.Write(chunk)

		if sess.buf.Len() >= m.flushThreshold {
			if err := m.flushBuffer(sess); err != nil {
				sess.log.Error("backend rejected audio, tearing session down", "error", err)
				m.finish(sess)
				return
			}
		}
	}
}

// flushBuffer pops the whole buffer and hands it to the backend. Flush
// boundaries never reorder bytes; the dump sink sees exactly the flushed
// chunks.
func (m *Manager) flushBuffer(sess *Session) error {
	if sess.buf.Len() == 0 {
		return nil
	}
	chunk := make([]byte, sess.buf.Len())
	copy(chunk, sess.buf.Bytes())
	sess.buf.Reset()

	m.dumpChunk(sess, chunk)

	if err := sess.handle.ProcessChunk(sess.ctx, chunk); err != nil {
		return fmt.Errorf("process %d bytes: %w", len(chunk), err)
	}
	sess.log.Debug("flushed audio buffer", "bytes", len(chunk))
	return nil
}

func (m *Manager) dumpChunk(sess *Session, chunk []byte) {
	if m.dumpDir == "" || sess.dumpFailed {
		return
	}
	if sess.dump == nil {
		path := filepath.Join(m.dumpDir, "wazo-stt-dump-"+sess.CallID+".pcm")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			sess.log.Warn("cannot open audio dump, dumping disabled for call", "path", path, "error", err)
			sess.dumpFailed = true
			return
		}
		sess.dump = f
	}
	if _, err := sess.dump.Write(chunk); err != nil {
		sess.log.Warn("audio dump write failed, dumping disabled for call", "error", err)
		sess.dumpFailed = true
		sess.closeDump()
	}
}

// finish is the worker-side teardown once the transport ends on its own. If
// an explicit Stop already removed the session, the stop path owns cleanup.
func (m *Manager) finish(sess *Session) {
	m.mu.Lock()
	current, ok := m.sessions[sess.CallID]
	if !ok || current != sess {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sess.CallID)
	m.mu.Unlock()

	sess.setState(StateStopping)
	m.teardown(sess)
	m.log.Info("transcription session ended", "call_id", sess.CallID)
}

// teardown runs the independent cleanup steps; a failing step is logged and
// never prevents the following ones.
func (m *Manager) teardown(sess *Session) {
	if sess.cancel != nil {
		sess.cancel()
	}
	if sess.transport != nil {
		if err := sess.transport.Close(); err != nil {
			sess.log.Warn("transport close failed", "error", err)
		}
	}
	if sess.handle != nil {
		if err := sess.handle.Stop(); err != nil {
			sess.log.Warn("backend stop failed", "error", err)
		}
	}
	sess.closeDump()
	if m.recorder != nil {
		if err := m.recorder.Close(context.Background(), sess.CallID); err != nil {
			sess.log.Warn("call record close failed", "error", err)
		}
	}
	sess.setState(StateStopped)
}

func (m *Manager) unregister(sess *Session) {
	m.mu.Lock()
	if current, ok := m.sessions[sess.CallID]; ok && current == sess {
		delete(m.sessions, sess.CallID)
	}
	m.mu.Unlock()
}

// PublishTranscription forwards one finalized result to the bus. Results for
// calls no longer in the table are dropped so nothing is published after
// Stop returns.
func (m *Manager) PublishTranscription(callID, tenantUUID, text string) {
	if !m.isActive(callID) {
		m.log.Debug("dropping transcription for inactive call", "call_id", callID)
		return
	}
	m.log.Info("transcription result", "call_id", callID, "text", text)
	if err := m.publisher.PublishTranscription(context.Background(), callID, tenantUUID, text); err != nil {
		m.log.Error("transcription publish failed", "call_id", callID, "error", err)
	}
}

// PublishAIResponse forwards a secondary-channel AI response.
func (m *Manager) PublishAIResponse(callID, tenantUUID, text string) {
	if !m.isActive(callID) {
		m.log.Debug("dropping ai response for inactive call", "call_id", callID)
		return
	}
	if err := m.publisher.PublishAIResponse(context.Background(), callID, tenantUUID, text); err != nil {
		m.log.Error("ai response publish failed", "call_id", callID, "error", err)
	}
}

func (m *Manager) isActive(callID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[callID]
	return ok
}
