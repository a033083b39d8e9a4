package bus

import (
	"log/slog"
	"sync"
	"time"

	"memosy/internal/domain"
	"memosy/internal/metrics"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based inbound queue between the chat channel
// and the relay loop.
type InMemoryBus struct {
	inbound chan domain.InboundMessage
	mu      sync.RWMutex
	closed  bool
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		inbound: make(chan domain.InboundMessage, bufferSize),
		timeout: publishTimeout,
		logger:  logger,
	}
}

// Blocks up to 10 seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(msg domain.InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- msg:
	default:
		b.logger.Warn("inbound bus full, waiting...", "chat_id", msg.ChatID, "message_id", msg.MessageID)
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		select {
		case b.inbound <- msg:
			b.logger.Info("message delivered after wait", "chat_id", msg.ChatID)
		case <-timer.C:
			metrics.MessagesDropped.Inc()
			b.logger.Error("message dropped: bus full",
				"chat_id", msg.ChatID,
				"message_id", msg.MessageID,
				"waited", b.timeout,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.InboundMessage {
	return b.inbound
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
