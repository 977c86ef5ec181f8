package parser

import (
	"reflect"
	"strings"
	"testing"
)

const encryptedMedia = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-TARGETDURATION:6
#EXT-X-MAP:URI="init.mp4",BYTERANGE="720@0"
#EXT-X-KEY:METHOD=AES-128,URI="keys/k1.bin",IV=0x00000000000000000000000000000001
#EXTINF:6.0,
seg1.m4s
#EXT-X-KEY:METHOD=AES-128,URI="keys/k1.bin"
#EXTINF:6.0,
seg2.m4s
#EXT-X-KEY:METHOD=SAMPLE-AES,URI="skd://fairplay"
#EXTINF:6.0,
seg3.m4s
#EXT-X-KEY:METHOD=NONE
#EXTINF:6.0,
seg4.m4s
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example.com/k2"
#EXTINF:6.0,
seg5.m4s
#EXT-X-KEY:METHOD=AES-128
#EXT-X-ENDLIST
`

func TestFindMap(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "relative map",
			text:   encryptedMedia,
			want:   "http://example.com/v/init.mp4",
			wantOK: true,
		},
		{
			name:   "no map",
			text:   "#EXTM3U\n#EXTINF:6.0,\nseg1.ts\n",
			wantOK: false,
		},
		{
			name:   "first map without uri",
			text:   "#EXTM3U\n#EXT-X-MAP:BYTERANGE=\"720@0\"\n#EXT-X-MAP:URI=\"later.mp4\"\n",
			wantOK: false,
		},
		{
			name:   "crlf line endings",
			text:   "#EXTM3U\r\n#EXT-X-MAP:URI=\"https://cdn.example.com/init.mp4\"\r\n",
			want:   "https://cdn.example.com/init.mp4",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindMap(tt.text, "http://example.com/v/index.m3u8")
			if ok != tt.wantOK {
				t.Fatalf("FindMap() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("FindMap() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyURIs(t *testing.T) {
	got := KeyURIs(encryptedMedia, "http://example.com/v/index.m3u8")
	want := []string{
		"http://example.com/v/keys/k1.bin",
		"https://keys.example.com/k2",
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("KeyURIs() = %v, want %v", got, want)
	}

	if got := KeyURIs("#EXTM3U\n#EXTINF:1,\na.ts\n", "http://example.com/"); len(got) != 0 {
		t.Errorf("Expected no keys, got %v", got)
	}
}

func TestIsAESKey(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{`#EXT-X-KEY:METHOD=AES-128,URI="k"`, true},
		{`#EXT-X-KEY:URI="k",METHOD=AES-128`, true},
		{`#EXT-X-KEY:METHOD=SAMPLE-AES,URI="k"`, false},
		{`#EXT-X-KEY:METHOD=NONE`, false},
		{`#EXT-X-SESSION-KEY:METHOD=AES-128,URI="k"`, false},
		{`#EXTINF:10,`, false},
	}

	for _, tt := range tests {
		if got := IsAESKey(tt.line); got != tt.want {
			t.Errorf("IsAESKey(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestKeyURIs_LongLine(t *testing.T) {
	text := "#EXTM3U\n#COMMENT:" + strings.Repeat("x", 2*1024*1024) + "\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"k.bin\"\n#EXTINF:1,\na.ts\n"

	got := KeyURIs(text, "http://example.com/media.m3u8")
	want := []string{"http://example.com/k.bin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("KeyURIs() = %v, want %v", got, want)
	}
}

func TestLines(t *testing.T) {
	got := Lines("#EXTM3U\r\n\n  a.ts  \n\r\n#EXT-X-ENDLIST")
	want := []string{"#EXTM3U", "a.ts", "#EXT-X-ENDLIST"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
}
