package voiceai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
)

const writeWait = 10 * time.Second

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConfiguring
	StateStreaming
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateStreaming:
		return "streaming"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Config struct {
	URI        string
	Language   string
	UseAI      bool
	SampleRate int

	Dialer        *websocket.Dialer
	MaxAttempts   int
	RetryDelay    time.Duration
	AckTimeout    time.Duration
	StartPoll     time.Duration
	StartAttempts int
	StopTimeout   time.Duration
	QueueSize     int
	Log           *slog.Logger
}

type Callbacks struct {
	OnTranscription func(text string)
	OnAIResponse    func(text string)
}

// Client maintains a persistent duplex stream to the voice AI service for a
// single call. Audio chunks are queued by Send and drained by an internal
// sender lane; results arrive on a receiver lane and are dispatched to the
// callbacks given to Start. Lost connections are re-established up to
// MaxAttempts times with a fixed delay between attempts.
//
// Chunks queued but not yet transmitted when the connection drops may be lost
// across the reconnect boundary.
type Client struct {
	cfg Config
	cb  Callbacks

	state   atomic.Int32
	queue   chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	log       *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 5 * time.Second
	}
	if cfg.StartPoll <= 0 {
		cfg.StartPoll = 500 * time.Millisecond
	}
	if cfg.StartAttempts <= 0 {
		cfg.StartAttempts = 10
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 3 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		queue:  make(chan []byte, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    cfg.Log.With("component", "voiceai_client"),
	}
	c.state.Store(int32(StateIdle))
	return c
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	c.log.Debug("voice ai client state", "state", s.String())
}

// Start launches the connection machinery and blocks until a streaming state
// is reached or the readiness poll budget runs out. A false return means the
// client never reached streaming and must be treated as a failed start.
func (c *Client) Start(cb Callbacks) bool {
	c.cb = cb
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.run()
	})

	for i := 0; i < c.cfg.StartAttempts; i++ {
		switch c.State() {
		case StateStreaming:
			return true
		case StateClosed:
			return false
		}
		select {
		case <-c.ctx.Done():
			return false
		case <-time.After(c.cfg.StartPoll):
		}
	}
	return c.State() == StateStreaming
}

// Send enqueues one audio chunk for transmission. It never blocks. Chunks
// offered while the client is not streaming are dropped.
func (c *Client) Send(chunk []byte) {
	if st := c.State(); st != StateStreaming {
		c.log.Warn("not streaming, dropping audio chunk", "state", st.String(), "bytes", len(chunk))
		return
	}
	select {
	case c.queue <- chunk:
	default:
		c.log.Warn("outbound queue full, dropping audio chunk", "bytes", len(chunk))
	}
}

// Stop cancels both lanes and the connection, waits briefly for a graceful
// exit, then releases the client regardless. Safe to call more than once and
// from any goroutine.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.log.Info("stopping voice ai client")
		c.cancel()

		if c.started.Load() {
			select {
			case <-c.done:
			case <-time.After(c.cfg.StopTimeout):
				c.log.Warn("voice ai client did not stop gracefully")
			}
		}
		c.setState(StateClosed)
	})
}

func (c *Client) run() {
	defer close(c.done)

	attempts := 0
	for {
		if c.ctx.Err() != nil {
			c.setState(StateClosed)
			return
		}

		c.setState(StateConnecting)
		conn, err := c.dial()
		if err == nil {
			c.setState(StateConfiguring)
			if err = c.configure(conn); err != nil {
				conn.Close()
			}
		}

		if err != nil {
			attempts++
			c.log.Warn("connection to voice ai service failed",
				"attempt", attempts,
				"max_attempts", c.cfg.MaxAttempts,
				"error", err)
			if attempts >= c.cfg.MaxAttempts {
				c.log.Error("voice ai connect retries spent", "error", shared.ErrConnectExhausted)
				c.setState(StateClosed)
				return
			}
			select {
			case <-c.ctx.Done():
				c.setState(StateClosed)
				return
			case <-time.After(c.cfg.RetryDelay):
			}
			continue
		}

		attempts = 0
		c.setState(StateStreaming)
		c.streamLanes(conn)
		conn.Close()

		if c.ctx.Err() != nil {
			c.setState(StateClosed)
			return
		}
		c.setState(StateDisconnected)
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	dialer := c.cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c.log.Info("connecting to voice ai service", "uri", c.cfg.URI)
	conn, _, err := dialer.DialContext(c.ctx, c.cfg.URI, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URI, err)
	}
	return conn, nil
}

// configure sends the one-shot session configuration and waits for the
// acknowledgment. A missed ack counts as a connect failure.
func (c *Client) configure(conn *websocket.Conn) error {
	msg := configMessage{
		Type:       messageTypeConfig,
		Language:   c.cfg.Language,
		UseAI:      c.cfg.UseAI,
		SampleRate: c.cfg.SampleRate,
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send config: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.AckTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("config ack: %w", err)
	}
	var ack serverMessage
	if err := json.Unmarshal(raw, &ack); err != nil {
		return fmt.Errorf("decode config ack: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	c.log.Info("voice ai session configured", "language", c.cfg.Language, "use_ai", c.cfg.UseAI)
	return nil
}

// streamLanes runs the sender and receiver until either ends, then cancels
// the survivor and waits for both to exit.
func (c *Client) streamLanes(conn *websocket.Conn) {
	laneCtx, cancelLanes := context.WithCancel(c.ctx)
	defer cancelLanes()

	// Wakes the receiver out of a blocking read once the lanes are done.
	go func() {
		<-laneCtx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- c.sender(laneCtx, conn)
	}()
	go func() {
		defer wg.Done()
		errCh <- c.receiver(laneCtx, conn)
	}()

	err := <-errCh
	cancelLanes()
	wg.Wait()

	if err != nil && c.ctx.Err() == nil {
		c.log.Warn("voice ai stream ended", "error", err)
	}
}

func (c *Client) sender(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk := <-c.queue:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				return fmt.Errorf("send chunk: %w", err)
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, endOfUnitMarker); err != nil {
				return fmt.Errorf("send end of unit marker: %w", err)
			}
			c.log.Debug("sent audio chunk", "bytes", len(chunk))
		}
	}
}

func (c *Client) receiver(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		c.dispatch(raw)
	}
}

func (c *Client) dispatch(raw []byte) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Error("undecodable message from voice ai service", "error", err)
		return
	}

	switch msg.Type {
	case messageTypeTranscription:
		if c.cb.OnTranscription != nil {
			c.cb.OnTranscription(msg.Text)
		}
	case messageTypeAIResponse:
		if c.cb.OnAIResponse != nil {
			c.cb.OnAIResponse(msg.Text)
		}
	case messageTypeError:
		c.log.Error("voice ai service reported an error", "message", msg.Message)
	default:
		c.log.Debug("ignoring message from voice ai service", "type", msg.Type)
	}
}
