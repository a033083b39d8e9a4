package domain

import (
	"time"
	"unicode/utf16"
)

// Entity kinds as reported by Telegram.
const (
	EntityURL      = "url"
	EntityTextLink = "text_link"
)

// Entity marks a span of a message or caption. Offset and Length count
// UTF-16 code units, the same way Telegram does.
type Entity struct {
	Type   string
	Offset int
	Length int
	URL    string // only for text_link
}

type InboundMessage struct {
	ChatID     int64
	MessageID  int
	Private    bool
	SenderID   int64
	SenderName string
	SenderLink string // optional: tg://user?id=<id>
	Text       string
	Entities   []Entity
	Timestamp  time.Time
}

// VideoDelivery is a single video upload back into a chat.
type VideoDelivery struct {
	ChatID  int64
	Path    string
	Caption string
	Links   []Entity
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
