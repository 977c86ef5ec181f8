package localizer

import (
	"fmt"
	"strings"

	"github.com/agleyzer/hlslocalizer/internal/variant"
)

// DefaultAudioBitrate is used to estimate the size of audio renditions, in bits per second.
const DefaultAudioBitrate = 160 * 1024

// Options controls which streams of a master playlist are selected for download.
type Options struct {
	// VideoHeight is the preferred minimum variant height in pixels: the
	// selection keeps variants at least this tall, or the tallest ones when
	// none is. 0 means no preference
	VideoHeight int

	// VideoBitrate is the preferred minimum variant BANDWIDTH, applied after
	// VideoHeight the same way. 0 means no preference
	VideoBitrate int

	// VideoCodecs and AudioCodecs list the codec tags a variant may use.
	// When no variant satisfies them every variant is considered.
	VideoCodecs []string
	AudioCodecs []string

	// AudioLanguages selects audio renditions by language. When it is empty,
	// AllAudioLanguages is false and the group has no rendition without a
	// LANGUAGE, the group's default rendition is selected.
	AudioLanguages    []string
	AllAudioLanguages bool

	// TextLanguages selects subtitle renditions by language. When empty and
	// AllTextLanguages is false, only subtitles without a LANGUAGE are selected.
	TextLanguages    []string
	AllTextLanguages bool
}

// Validate checks the options and fills in defaults.
func (o *Options) Validate() error {
	if o.VideoBitrate < 0 {
		return fmt.Errorf("video bitrate must not be negative, got %d", o.VideoBitrate)
	}
	if o.VideoHeight < 0 {
		return fmt.Errorf("video height must not be negative, got %d", o.VideoHeight)
	}

	if len(o.VideoCodecs) == 0 {
		o.VideoCodecs = []string{variant.CodecHVC1, variant.CodecHEV1, variant.CodecAVC1}
	}
	if len(o.AudioCodecs) == 0 {
		o.AudioCodecs = []string{variant.CodecEC3, variant.CodecAC3, variant.CodecMP4A}
	}

	for _, lang := range append(append([]string{}, o.AudioLanguages...), o.TextLanguages...) {
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("language codes must not be empty")
		}
	}

	return nil
}

// matchLanguage reports whether lang equals one of wanted, comparing case-insensitively
// and by primary subtag, so "en" matches "en-US".
func matchLanguage(lang string, wanted []string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return false
	}
	primary, _, _ := strings.Cut(lang, "-")

	for _, w := range wanted {
		w = strings.ToLower(strings.TrimSpace(w))
		wp, _, _ := strings.Cut(w, "-")
		if w == lang || wp == primary {
			return true
		}
	}
	return false
}
