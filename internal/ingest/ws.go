package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
)

const streamSubprotocol = "stream-channel"

// WSDialer opens the call-control platform's per-channel audio stream. The
// call is selected with a Channel-ID header on the upgrade request.
type WSDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func NewWSDialer(url string) *WSDialer {
	return &WSDialer{URL: url}
}

func (d *WSDialer) Dial(ctx context.Context, callID string) (Transport, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set("Channel-ID", callID)

	wsDialer := *dialer
	wsDialer.Subprotocols = []string{streamSubprotocol}

	conn, _, err := wsDialer.DialContext(ctx, d.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial audio stream for %s: %w", callID, err)
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (t *wsTransport) Receive() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrTransportError, err)
	}
	return data, nil
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
