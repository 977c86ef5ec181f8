package playlist

import (
	"strings"
	"testing"

	"github.com/agleyzer/hlslocalizer/internal/ident"
	"github.com/agleyzer/hlslocalizer/internal/parser"
)

const mediaBase = "https://example.com/hls/720p/index.m3u8"

func TestRewriteMedia(t *testing.T) {
	text := "#EXTM3U\r\n" +
		"#EXT-X-VERSION:6\r\n" +
		"\r\n" +
		"#EXT-X-TARGETDURATION:6\r\n" +
		`#EXT-X-MAP:URI="init.mp4",BYTERANGE="720@0"` + "\r\n" +
		`#EXT-X-KEY:METHOD=AES-128,URI="../keys/k1.bin",IV=0x01` + "\r\n" +
		"#EXTINF:6.0,\r\n" +
		"seg1.m4s\r\n" +
		`#EXT-X-KEY:METHOD=SAMPLE-AES,URI="skd://fairplay"` + "\r\n" +
		"#EXTINF:6.0,\r\n" +
		"https://cdn.example.com/seg2.m4s?token=x\r\n" +
		"#EXT-X-ENDLIST\r\n"

	got, err := RewriteMedia(text, mediaBase)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:6",
		"#EXT-X-TARGETDURATION:6",
		`#EXT-X-MAP:URI="` + ident.SegmentPath("https://example.com/hls/720p/init.mp4") + `",BYTERANGE="720@0"`,
		`#EXT-X-KEY:METHOD=AES-128,URI="../key/` + ident.SegmentPath("https://example.com/hls/keys/k1.bin") + `",IV=0x01`,
		"#EXTINF:6.0,",
		ident.SegmentPath("https://example.com/hls/720p/seg1.m4s"),
		`#EXT-X-KEY:METHOD=SAMPLE-AES,URI="skd://fairplay"`,
		"#EXTINF:6.0,",
		ident.SegmentPath("https://cdn.example.com/seg2.m4s?token=x"),
		"#EXT-X-ENDLIST",
	}, "\n") + "\n"

	if got != want {
		t.Errorf("RewriteMedia() mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRewriteMedia_KeyWithoutURI(t *testing.T) {
	text := "#EXTM3U\n#EXT-X-KEY:METHOD=AES-128\n#EXTINF:1,\na.ts\n"

	got, err := RewriteMedia(text, mediaBase)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(got, "#EXT-X-KEY:METHOD=AES-128\n") {
		t.Errorf("Expected key line without URI to pass through, got:\n%s", got)
	}
}

func TestRewriteMedia_SegmentsKeepExtension(t *testing.T) {
	got, err := RewriteMedia("#EXTINF:1,\nsub.vtt\n", mediaBase)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	lines := strings.Split(strings.TrimSpace(got), "\n")
	last := lines[len(lines)-1]
	if !strings.HasSuffix(last, ".vtt") {
		t.Errorf("Expected .vtt extension, got %q", last)
	}
	if !ident.Valid(strings.TrimSuffix(last, ".vtt")) {
		t.Errorf("Expected identifier file name, got %q", last)
	}
}

func TestRewriteMedia_InvalidBase(t *testing.T) {
	if _, err := RewriteMedia("#EXTINF:1,\na.ts\n", "://bad"); err == nil {
		t.Error("Expected error for invalid base URL")
	}
}

func TestRewriteMedia_KeysMatchPlannedKeys(t *testing.T) {
	text := "#EXTM3U\n#X-VENDOR-DATA:" + strings.Repeat("a", 2*1024*1024) + "\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"../keys/k1.bin\"\n#EXTINF:4,\nseg.ts\n"

	got, err := RewriteMedia(text, mediaBase)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	keys := parser.KeyURIs(text, mediaBase)
	if len(keys) != 1 {
		t.Fatalf("Expected 1 planned key, got %v", keys)
	}
	want := `URI="../` + ident.LocalPath(KeyDir, keys[0]) + `"`
	if !strings.Contains(got, want) {
		t.Errorf("Expected rewritten key %s, got:\n%.200s", want, got[len(got)-200:])
	}
}
