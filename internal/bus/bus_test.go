package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"memosy/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestBus_PublishSubscribe_PreservesOrder(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	for i := 1; i <= 3; i++ {
		b.Publish(domain.InboundMessage{ChatID: 1, MessageID: i})
	}

	ch := b.Subscribe()
	for want := 1; want <= 3; want++ {
		select {
		case msg := <-ch:
			if msg.MessageID != want {
				t.Fatalf("got message %d, want %d", msg.MessageID, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestBus_DefaultBufferSize(t *testing.T) {
	b := New(0, testLogger())
	defer b.Close()
	if cap(b.inbound) != 100 {
		t.Errorf("buffer: got %d, want 100", cap(b.inbound))
	}
}

func TestBus_PublishAfterClose_NoPanic(t *testing.T) {
	b := New(1, testLogger())
	b.Close()
	b.Close()
	b.Publish(domain.InboundMessage{ChatID: 1})

	if _, ok := <-b.Subscribe(); ok {
		t.Error("expected closed channel")
	}
}

func TestBus_FullBuffer_DropsAfterTimeout(t *testing.T) {
	b := New(1, testLogger())
	b.timeout = 20 * time.Millisecond
	defer b.Close()

	b.Publish(domain.InboundMessage{MessageID: 1})
	start := time.Now()
	b.Publish(domain.InboundMessage{MessageID: 2})
	if time.Since(start) < 20*time.Millisecond {
		t.Error("publish on full bus should wait for the timeout")
	}

	msg := <-b.Subscribe()
	if msg.MessageID != 1 {
		t.Errorf("got %d, want 1", msg.MessageID)
	}
	select {
	case msg := <-b.Subscribe():
		t.Errorf("unexpected message %d, second publish should have been dropped", msg.MessageID)
	default:
	}
}
