package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
)

var testUpgrader = websocket.Upgrader{
	Subprotocols: []string{streamSubprotocol},
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSDialer_SendsChannelHeader(t *testing.T) {
	gotChannel := make(chan string, 1)
	gotProto := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotChannel <- r.Header.Get("Channel-ID")
		gotProto <- r.Header.Get("Sec-WebSocket-Protocol")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	tr, err := NewWSDialer(wsURL(srv)).Dial(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	if got := <-gotChannel; got != "call-1" {
		t.Errorf("Channel-ID header = %q, want call-1", got)
	}
	if got := <-gotProto; !strings.Contains(got, streamSubprotocol) {
		t.Errorf("subprotocol header = %q, want %q", got, streamSubprotocol)
	}
}

func TestWSTransport_ReceiveChunksInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, chunk := range []string{"one", "two", "three"} {
			if err := conn.WriteMessage(websocket.BinaryMessage, []byte(chunk)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}))
	defer srv.Close()

	tr, err := NewWSDialer(wsURL(srv)).Dial(context.Background(), "call-2")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	for _, want := range []string{"one", "two", "three"} {
		chunk, err := tr.Receive()
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if string(chunk) != want {
			t.Errorf("chunk = %q, want %q", chunk, want)
		}
	}

	if _, err := tr.Receive(); !errors.Is(err, io.EOF) {
		t.Errorf("after normal close Receive err = %v, want io.EOF", err)
	}
}

func TestWSTransport_AbnormalCloseIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop the TCP connection without a close handshake.
		conn.UnderlyingConn().Close()
	}))
	defer srv.Close()

	tr, err := NewWSDialer(wsURL(srv)).Dial(context.Background(), "call-3")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	_, err = tr.Receive()
	if err == nil {
		t.Fatal("expected an error from Receive")
	}
	if errors.Is(err, io.EOF) {
		t.Error("abnormal close must not look like a normal close")
	}
	if !errors.Is(err, shared.ErrTransportError) {
		t.Errorf("err = %v, want wrapped ErrTransportError", err)
	}
}

func TestWSTransport_CloseUnblocksReceive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	tr, err := NewWSDialer(wsURL(srv)).Dial(context.Background(), "call-4")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := tr.Receive()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Receive should fail after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not unblock after Close")
	}
}

func TestWSDialer_DialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := NewWSDialer("ws://127.0.0.1:1").Dial(ctx, "call-5")
	if err == nil {
		t.Fatal("expected dial error")
	}
}
