package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"memosy/internal/domain"
	"memosy/internal/downloader"
	"memosy/internal/metrics"
)

// Fetcher downloads one URL into a job.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*downloader.Job, error)
}

// Courier talks back to the chat platform.
type Courier interface {
	SendVideo(ctx context.Context, d domain.VideoDelivery) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Relay turns inbound messages with links into uploaded videos.
type Relay struct {
	fetcher      Fetcher
	courier      Courier
	bus          domain.MessageBus
	ignoreMarker string
	logger       *slog.Logger
}

// Config wires a Relay. Logger defaults to slog.Default; an empty
// IgnoreMarker disables the opt-out check.
type Config struct {
	Fetcher      Fetcher
	Courier      Courier
	Bus          domain.MessageBus
	IgnoreMarker string
	Logger       *slog.Logger
}

// New creates a Relay that consumes cfg.Bus when Run is called.
func New(cfg Config) *Relay {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Relay{
		fetcher:      cfg.Fetcher,
		courier:      cfg.Courier,
		bus:          cfg.Bus,
		ignoreMarker: cfg.IgnoreMarker,
		logger:       cfg.Logger,
	}
}

// Run consumes inbound messages one at a time until ctx is cancelled or the
// bus is closed. A failing message never stops the loop.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("relay loop started")
	inbound := r.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay loop stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				r.logger.Info("inbound channel closed, relay loop stopping")
				return
			}
			r.dispatch(ctx, msg)
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, msg domain.InboundMessage) {
	defer func() {
		if p := recover(); p != nil {
			metrics.HandlerErrors.Inc()
			r.logger.Error("relay handler panic", "chat_id", msg.ChatID, "message_id", msg.MessageID, "panic", p)
		}
	}()
	if err := r.Handle(ctx, msg); err != nil {
		metrics.HandlerErrors.Inc()
		r.logger.Error("message handling aborted", "chat_id", msg.ChatID, "message_id", msg.MessageID, "err", err)
	}
}

// Handle processes a single message. URLs are handled in order; a failed
// download skips that URL, a failed upload aborts the rest of the message.
func (r *Relay) Handle(ctx context.Context, msg domain.InboundMessage) error {
	start := time.Now()
	metrics.MessagesTotal.Inc()

	urls := ExtractURLs(msg, r.ignoreMarker)
	if len(urls) == 0 {
		return nil
	}
	metrics.URLsExtracted.Add(int64(len(urls)))
	r.logger.Info("urls extracted",
		"chat_id", msg.ChatID,
		"message_id", msg.MessageID,
		"count", len(urls),
	)

	delivered := 0
	var handleErr error
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			handleErr = err
			break
		}

		job, err := r.fetcher.Fetch(ctx, u)
		if err != nil {
			r.logger.Error("download failed, skipping url", "chat_id", msg.ChatID, "url", u, "err", err)
			continue
		}

		if err := r.deliver(ctx, msg, job); err != nil {
			handleErr = fmt.Errorf("deliver %s: %w", u, err)
			break
		}
		delivered++
	}

	// Videos already posted replace the link message even when a later
	// URL aborted the message.
	if delivered > 0 && !msg.Private {
		if err := r.courier.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
			r.logger.Warn("failed to delete origin message", "chat_id", msg.ChatID, "message_id", msg.MessageID, "err", err)
		}
	}
	if handleErr != nil {
		return handleErr
	}

	r.logger.Info("message handled",
		"chat_id", msg.ChatID,
		"message_id", msg.MessageID,
		"delivered", delivered,
		"elapsed", time.Since(start),
	)
	return nil
}

// deliver uploads the job's file and always removes it afterwards.
func (r *Relay) deliver(ctx context.Context, msg domain.InboundMessage, job *downloader.Job) error {
	defer func() {
		if err := job.Cleanup(); err != nil {
			r.logger.Error("failed to delete video file", "job", job.ID, "err", err)
		}
	}()

	err := r.courier.SendVideo(ctx, Compose(msg, job.Path))
	if err != nil {
		metrics.DeliveriesFailed.Inc()
		return err
	}
	metrics.DeliveriesOK.Inc()
	r.logger.Info("video sent", "chat_id", msg.ChatID, "job", job.ID, "private", msg.Private)
	return nil
}
