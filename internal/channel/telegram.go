package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"memosy/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen     = 4000
	telegramPollTimeout   = 30
	telegramHelpText      = "Send me a link to a video and I'll post the video itself.\n\nIn groups I credit the sender and remove the original link message."
	telegramOptOutHint    = "\n\nPut %s anywhere in a message to make me skip it."
	telegramUserLinkFmt   = "tg://user?id=%d"
	telegramStartupNotice = "Bot started"
)

// botAPI is the subset of tgbotapi.BotAPI the channel sends through.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Telegram implements domain.Channel for the Telegram Bot API and serves as
// the relay's courier.
type Telegram struct {
	token     string
	allowFrom []int64 // allowed user or chat IDs (empty = allow all)
	helpText  string

	bot    *tgbotapi.BotAPI
	api    botAPI
	bus    domain.MessageBus
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // user or chat IDs as strings
	HelpText  string
	// IgnoreMarker is mentioned in the default help text when set.
	IgnoreMarker string
	Logger       *slog.Logger
}

var _ domain.Channel = (*Telegram)(nil)

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.HelpText == "" {
		cfg.HelpText = telegramHelpText
		if cfg.IgnoreMarker != "" {
			cfg.HelpText += fmt.Sprintf(telegramOptOutHint, cfg.IgnoreMarker)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		helpText:  cfg.HelpText,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Connect authenticates the bot. Start calls it when needed.
func (t *Telegram) Connect() error {
	if t.bot != nil {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.api = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)
	return nil
}

// Start begins polling for updates and publishes chat messages to bus.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus
	if err := t.Connect(); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramPollTimeout
	updates := t.bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			t.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop is a no-op: polling ends when Start's context is cancelled, and
// StopReceivingUpdates panics when called twice.
func (t *Telegram) Stop() error {
	return nil
}

// Send delivers a plain text message, split into Telegram-sized chunks.
func (t *Telegram) Send(ctx context.Context, chatID string, content string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	return t.sendMessage(id, content)
}

// NotifyStartup tells the admin chat the bot is up.
func (t *Telegram) NotifyStartup(ctx context.Context, adminID string) error {
	return t.Send(ctx, adminID, telegramStartupNotice)
}

// SendVideo uploads a local file as a video with optional caption entities.
func (t *Telegram) SendVideo(ctx context.Context, d domain.VideoDelivery) error {
	if t.api == nil {
		return errors.New("telegram: not connected")
	}
	v := tgbotapi.NewVideo(d.ChatID, tgbotapi.FilePath(d.Path))
	v.SupportsStreaming = true
	v.Caption = d.Caption
	for _, e := range d.Links {
		v.CaptionEntities = append(v.CaptionEntities, toTelegramEntity(e))
	}
	if _, err := t.api.Send(v); err != nil {
		return fmt.Errorf("telegram send video: %w", err)
	}
	return nil
}

// DeleteMessage removes a message from a chat.
func (t *Telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if t.api == nil {
		return errors.New("telegram: not connected")
	}
	// deleteMessage returns a bool, so it goes through Request rather than Send.
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("telegram delete message: %w", err)
	}
	return nil
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return
	}

	var userID int64
	if m.From != nil {
		userID = m.From.ID
	}
	if !t.isAllowed(userID, m.Chat.ID) {
		t.logger.Warn("message from chat not in allow list",
			"user_id", userID,
			"chat_id", m.Chat.ID,
		)
		return
	}

	if m.IsCommand() {
		if m.Chat.IsPrivate() {
			t.handleCommand(m)
		}
		return
	}

	msg := toInbound(m)
	if msg.Text == "" {
		return
	}

	t.logger.Debug("telegram message received",
		"user_id", userID,
		"chat_id", msg.ChatID,
		"entities", len(msg.Entities),
	)
	t.bus.Publish(msg)
}

func (t *Telegram) handleCommand(m *tgbotapi.Message) {
	switch m.Command() {
	case "start", "help":
		if err := t.sendMessage(m.Chat.ID, t.helpText); err != nil {
			t.logger.Warn("telegram help reply failed", "chat_id", m.Chat.ID, "err", err)
		}
	}
}

func (t *Telegram) isAllowed(userID, chatID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID || id == chatID {
			return true
		}
	}
	return false
}

func (t *Telegram) sendMessage(chatID int64, text string) error {
	if t.api == nil {
		return errors.New("telegram: not connected")
	}
	// Telegram has a 4096 char limit per message
	const maxLen = telegramMaxMsgLen
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		if _, err := t.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("telegram send message: %w", err)
		}
	}
	return nil
}

// toInbound converts a Telegram message. Media messages fall back to their
// caption and caption entities.
func toInbound(m *tgbotapi.Message) domain.InboundMessage {
	text, entities := m.Text, m.Entities
	if text == "" {
		text, entities = m.Caption, m.CaptionEntities
	}

	msg := domain.InboundMessage{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Private:   m.Chat.IsPrivate(),
		Text:      text,
		Timestamp: time.Unix(int64(m.Date), 0),
	}
	if m.From != nil {
		msg.SenderID = m.From.ID
		msg.SenderName = m.From.FirstName
		msg.SenderLink = fmt.Sprintf(telegramUserLinkFmt, m.From.ID)
	}
	for _, e := range entities {
		msg.Entities = append(msg.Entities, domain.Entity{
			Type:   e.Type,
			Offset: e.Offset,
			Length: e.Length,
			URL:    e.URL,
		})
	}
	return msg
}

func toTelegramEntity(e domain.Entity) tgbotapi.MessageEntity {
	return tgbotapi.MessageEntity{
		Type:   e.Type,
		Offset: e.Offset,
		Length: e.Length,
		URL:    e.URL,
	}
}
