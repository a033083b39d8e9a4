package relay

import (
	"unicode/utf16"

	"memosy/internal/domain"
)

// Telegram caps media captions at 1024 characters (UTF-16 units).
const maxCaptionLen = 1024

// Compose builds the upload for a downloaded file. Private chats get the bare
// video. Elsewhere the caption credits the sender, with the name linked to the
// sender's profile when one is known.
func Compose(msg domain.InboundMessage, path string) domain.VideoDelivery {
	d := domain.VideoDelivery{ChatID: msg.ChatID, Path: path}
	if msg.Private {
		return d
	}

	d.Caption = truncateUTF16(msg.SenderName+"\n"+msg.Text, maxCaptionLen)

	nameLen := domain.UTF16Len(msg.SenderName)
	if msg.SenderLink != "" && nameLen > 0 {
		d.Links = []domain.Entity{{
			Type:   domain.EntityTextLink,
			Offset: 0,
			Length: min(nameLen, domain.UTF16Len(d.Caption)),
			URL:    msg.SenderLink,
		}}
	}
	return d
}

// truncateUTF16 cuts s to at most n UTF-16 units without splitting a rune.
func truncateUTF16(s string, n int) string {
	used := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if used+w > n {
			return s[:i]
		}
		used += w
	}
	return s
}
