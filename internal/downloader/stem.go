package downloader

import (
	"net/url"
	"path"
	"strings"
)

// PlaceholderStem names the output when a URL has no usable path segment.
const PlaceholderStem = "video"

const maxStemLen = 64

// DeriveStem returns the file name base for rawURL: its last path segment
// with the query string dropped. Unsafe characters become '_'.
func DeriveStem(rawURL string) string {
	p := ""
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		p = u.EscapedPath()
	} else {
		p = rawURL
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
	}

	p = strings.TrimRight(p, "/")
	if p == "" {
		return PlaceholderStem
	}
	seg := path.Base(p)
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	seg = sanitizeStem(seg)
	if seg == "" || seg == "." || seg == ".." {
		return PlaceholderStem
	}
	return seg
}

func sanitizeStem(s string) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() >= maxStemLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
