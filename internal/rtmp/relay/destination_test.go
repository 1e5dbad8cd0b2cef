package relay

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/driftcast/rtmp-ingest/internal/rtmp/chunk"
)

// fakeRTMPClient is a minimal RTMPClient stub for exercising Destination
// without a real network connection.
type fakeRTMPClient struct {
	connectCalls int32
	failConnect  bool
}

func (c *fakeRTMPClient) Connect() error {
	atomic.AddInt32(&c.connectCalls, 1)
	if c.failConnect {
		return fmt.Errorf("simulated connect failure")
	}
	return nil
}
func (c *fakeRTMPClient) Publish() error                               { return nil }
func (c *fakeRTMPClient) SendAudio(timestamp uint32, payload []byte) error { return nil }
func (c *fakeRTMPClient) SendVideo(timestamp uint32, payload []byte) error { return nil }
func (c *fakeRTMPClient) Close() error                                 { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(noopWriter{}, nil))
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDestinationConnectAndSendMessage(t *testing.T) {
	fake := &fakeRTMPClient{}
	dest, err := NewDestination("rtmp://example.com/live/key", discardLogger(), func(string) (RTMPClient, error) {
		return fake, nil
	})
	if err != nil {
		t.Fatalf("NewDestination: %v", err)
	}
	defer dest.Close()

	if err := dest.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if dest.GetStatus() != StatusConnected {
		t.Fatalf("expected StatusConnected, got %v", dest.GetStatus())
	}

	msg := &chunk.Message{TypeID: 9, Payload: []byte{0x17, 0x01, 0x00}, Timestamp: 1000}
	if err := dest.SendMessage(msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	metrics := dest.GetMetrics()
	if metrics.MessagesSent != 1 {
		t.Errorf("expected 1 message sent, got %d", metrics.MessagesSent)
	}
}

// TestDestinationReconnectLoopStopsOnClose verifies that Close cancels the
// background reconnect loop rather than leaving it spinning.
func TestDestinationReconnectLoopStopsOnClose(t *testing.T) {
	fake := &fakeRTMPClient{failConnect: true}
	dest, err := NewDestination("rtmp://example.com/live/key", discardLogger(), func(string) (RTMPClient, error) {
		return fake, nil
	})
	if err != nil {
		t.Fatalf("NewDestination: %v", err)
	}

	// Let the reconnect loop attempt at least once before shutting it down.
	time.Sleep(10 * time.Millisecond)
	if err := dest.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// reconnectCtx is cancelled, so the loop's next Wait should return
	// immediately rather than hang; give it a moment to actually exit and
	// confirm no further connect attempts happen afterward.
	callsAtClose := atomic.LoadInt32(&fake.connectCalls)
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fake.connectCalls) != callsAtClose {
		t.Error("reconnect loop kept attempting connects after Close")
	}
}

func TestDestinationStatusString(t *testing.T) {
	cases := map[DestinationStatus]string{
		StatusDisconnected: "disconnected",
		StatusConnecting:   "connecting",
		StatusConnected:    "connected",
		StatusError:        "error",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("status %d: expected %q, got %q", status, want, got)
		}
	}
}
