package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// stubBus hands out channels that never deliver; the pumps exit on context
// cancellation.
type stubBus struct{}

func (stubBus) Publish(ctx context.Context, channel string, payload []byte) error { return nil }
func (stubBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func TestHandleWSAfterShutdownClosesConnection(t *testing.T) {
	hub := NewHub(stubBus{}, "0xbbb", slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- hub.Run(ctx) }()
	cancel()
	if err := <-runDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	// The upgrade still succeeds, but with nothing draining register the
	// handler must close the connection instead of parking.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("expected the connection to be closed")
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		t.Fatal("connection left open; handler parked on register after shutdown")
	}

	if got := hub.clientCount(); got != 0 {
		t.Errorf("clients after shutdown = %d, want 0", got)
	}
}
