package relay

import (
	"strings"
	"unicode/utf16"

	"memosy/internal/domain"
)

// ExtractURLs returns the text of every url entity in msg, in order. A message
// containing the opt-out marker yields nothing; an empty marker disables the
// opt-out.
func ExtractURLs(msg domain.InboundMessage, marker string) []string {
	if marker != "" && strings.Contains(msg.Text, marker) {
		return nil
	}
	if len(msg.Entities) == 0 {
		return nil
	}

	units := utf16.Encode([]rune(msg.Text))
	var urls []string
	for _, e := range msg.Entities {
		if e.Type != domain.EntityURL {
			continue
		}
		if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
			continue
		}
		urls = append(urls, string(utf16.Decode(units[e.Offset:e.Offset+e.Length])))
	}
	return urls
}
