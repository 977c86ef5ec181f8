package variant

import (
	"reflect"
	"testing"
)

func TestVariant_Dimensions(t *testing.T) {
	tests := []struct {
		resolution string
		wantWidth  int
		wantHeight int
	}{
		{"1920x1080", 1920, 1080},
		{"640X360", 640, 360},
		{"", 0, 0},
		{"wide", 0, 0},
		{"axb", 0, 0},
	}

	for _, tt := range tests {
		v := Variant{Resolution: tt.resolution}
		if v.Width() != tt.wantWidth || v.Height() != tt.wantHeight {
			t.Errorf("Resolution %q: got %dx%d, want %dx%d", tt.resolution, v.Width(), v.Height(), tt.wantWidth, tt.wantHeight)
		}
	}
}

func TestVariant_CodecTags(t *testing.T) {
	tests := []struct {
		name      string
		codecs    string
		wantTags  []string
		wantVideo string
		wantAudio string
	}{
		{
			name:      "avc and aac",
			codecs:    "avc1.4d401f,mp4a.40.2",
			wantTags:  []string{"avc1", "mp4a"},
			wantVideo: CodecAVC1,
			wantAudio: CodecMP4A,
		},
		{
			name:      "hevc with dolby",
			codecs:    "hvc1.2.4.L123.B0, ec-3",
			wantTags:  []string{"hvc1", "ec-3"},
			wantVideo: CodecHVC1,
			wantAudio: CodecEC3,
		},
		{
			name:      "duplicates collapse",
			codecs:    "mp4a.40.2,mp4a.40.5",
			wantTags:  []string{"mp4a"},
			wantVideo: "",
			wantAudio: CodecMP4A,
		},
		{
			name:     "no codecs",
			codecs:   "",
			wantTags: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Variant{Codecs: tt.codecs}
			if got := v.CodecTags(); !reflect.DeepEqual(got, tt.wantTags) {
				t.Errorf("CodecTags() = %v, want %v", got, tt.wantTags)
			}
			if got := v.VideoCodec(); got != tt.wantVideo {
				t.Errorf("VideoCodec() = %q, want %q", got, tt.wantVideo)
			}
			if got := v.AudioCodec(); got != tt.wantAudio {
				t.Errorf("AudioCodec() = %q, want %q", got, tt.wantAudio)
			}
		})
	}
}

func TestVariant_UsesOnly(t *testing.T) {
	allowed := []string{CodecAVC1, CodecMP4A}

	if !(Variant{Codecs: "avc1.64001f,mp4a.40.2"}).UsesOnly(allowed) {
		t.Error("Expected avc1/mp4a variant to be allowed")
	}
	if (Variant{Codecs: "hvc1.1.6.L93.90,mp4a.40.2"}).UsesOnly(allowed) {
		t.Error("Expected hvc1 variant to be rejected")
	}
	if !(Variant{}).UsesOnly(allowed) {
		t.Error("Expected variant without codecs to be allowed")
	}
}
