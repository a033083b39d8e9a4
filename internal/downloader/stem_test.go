package downloader

import "testing"

func TestDeriveStem(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/watch/abc123?x=1", "abc123"},
		{"https://example.com/?x=1", PlaceholderStem},
		{"https://example.com", PlaceholderStem},
		{"https://example.com/", PlaceholderStem},
		{"https://www.instagram.com/reel/C1a2B3c4/", "C1a2B3c4"},
		{"https://vm.tiktok.com/ZMabc/?is_from_webapp=1", "ZMabc"},
		{"https://x.com/user/status/1234567890#frag", "1234567890"},
		{"https://example.com/a/%D0%B2%D0%B8%D0%B4%D0%B5%D0%BE", "_____"},
		{"https://example.com/a/..", PlaceholderStem},
		{"https://example.com/a/%2e%2e", PlaceholderStem},
		{"https://example.com/a/file name.mp4", "file_name.mp4"},
		{"site/x", "x"},
		{"site/x?y=1", "x"},
	}
	for _, tt := range tests {
		if got := DeriveStem(tt.url); got != tt.want {
			t.Errorf("DeriveStem(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDeriveStem_LongSegmentIsBounded(t *testing.T) {
	long := "https://example.com/"
	for i := 0; i < 200; i++ {
		long += "a"
	}
	if got := DeriveStem(long); len(got) != maxStemLen {
		t.Errorf("stem length: got %d, want %d", len(got), maxStemLen)
	}
}
