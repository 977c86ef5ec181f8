// Package variant defines data structures for HLS variant streams and renditions in master playlists.
package variant

import (
	"strconv"
	"strings"

	"github.com/agleyzer/hlslocalizer/internal/segment"
)

// Known codec tags, the part of a CODECS entry before the first '.'.
const (
	CodecAVC1 = "avc1"
	CodecHVC1 = "hvc1"
	CodecHEV1 = "hev1"
	CodecMP4A = "mp4a"
	CodecAC3  = "ac-3"
	CodecEC3  = "ec-3"
)

var (
	videoCodecTags = []string{CodecAVC1, CodecHVC1, CodecHEV1}
	audioCodecTags = []string{CodecMP4A, CodecAC3, CodecEC3}
)

// Variant represents a single variant stream in an HLS master playlist.
type Variant struct {
	// Bandwidth is the peak segment bitrate in bits per second
	Bandwidth int

	// Resolution is the video resolution (e.g., "1920x1080")
	// Empty string if not specified in master playlist
	Resolution string

	// Codecs is the raw CODECS attribute (e.g., "avc1.4d401f,mp4a.40.2")
	Codecs string

	// AudioGroup and SubtitlesGroup reference EXT-X-MEDIA GROUP-IDs
	AudioGroup     string
	SubtitlesGroup string

	// PlaylistURL is the absolute URL of the variant's media playlist
	PlaylistURL string
}

// Width returns the horizontal resolution, 0 if unknown.
func (v Variant) Width() int {
	w, _ := v.dimensions()
	return w
}

// Height returns the vertical resolution, 0 if unknown.
func (v Variant) Height() int {
	_, h := v.dimensions()
	return h
}

func (v Variant) dimensions() (int, int) {
	w, h, ok := strings.Cut(strings.ToLower(v.Resolution), "x")
	if !ok {
		return 0, 0
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil {
		return 0, 0
	}
	return width, height
}

// CodecTags returns the distinct codec tags in the order they appear.
func (v Variant) CodecTags() []string {
	var tags []string
	seen := make(map[string]bool)
	for _, c := range strings.Split(v.Codecs, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		tag, _, _ := strings.Cut(c, ".")
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

// VideoCodec returns the first known video codec tag, or "".
func (v Variant) VideoCodec() string {
	return firstKnown(v.CodecTags(), videoCodecTags)
}

// AudioCodec returns the first known audio codec tag, or "".
func (v Variant) AudioCodec() string {
	return firstKnown(v.CodecTags(), audioCodecTags)
}

// UsesOnly reports whether every codec tag is in allowed.
// A variant without CODECS is assumed playable.
func (v Variant) UsesOnly(allowed []string) bool {
	for _, tag := range v.CodecTags() {
		if !contains(allowed, tag) {
			return false
		}
	}
	return true
}

func firstKnown(tags, known []string) string {
	for _, tag := range tags {
		if contains(known, tag) {
			return tag
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Rendition is an EXT-X-MEDIA alternative (audio or subtitles) of a variant.
type Rendition struct {
	// Type is AUDIO, SUBTITLES, VIDEO or CLOSED-CAPTIONS
	Type     string
	GroupID  string
	Name     string
	Language string
	Default  bool

	// Bandwidth is the rendition's own BANDWIDTH attribute, 0 when absent
	Bandwidth int

	// PlaylistURL is the absolute media playlist URL; empty when the
	// rendition is carried inside the variant stream
	PlaylistURL string
}

// Stream is a media playlist selected for download together with its segments.
type Stream struct {
	// Kind is the task type name the stream's segments are stored under
	Kind string

	PlaylistURL string
	Text        string

	Segments []segment.Segment

	// Variant is set for the video stream, Rendition for audio and text
	Variant   *Variant
	Rendition *Rendition

	TargetDuration int
}
