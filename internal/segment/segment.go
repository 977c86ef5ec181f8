// Package segment defines data structures for HLS media segments listed in a media playlist.
package segment

// Segment represents a single media segment to be localized.
type Segment struct {
	// URL is the absolute segment URL, resolved against the media playlist URL
	URL string

	// RawURI is the URI exactly as written in the playlist
	RawURI string

	// Duration is the segment duration in seconds
	Duration float64

	// Sequence is the position in the source playlist
	Sequence int
}
