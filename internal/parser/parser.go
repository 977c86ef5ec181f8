// Package parser provides HLS playlist fetching and parsing functionality.
package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agleyzer/hlslocalizer/internal/attrlist"
	"github.com/agleyzer/hlslocalizer/internal/segment"
	"github.com/agleyzer/hlslocalizer/internal/variant"
	"github.com/grafov/m3u8"
)

// DefaultTimeout is used by clients created when the caller passes none.
const DefaultTimeout = 30 * time.Second

// PlaylistInfo contains the parsed playlist information.
// Supports both master playlists (with multiple variants) and media playlists (single variant).
type PlaylistInfo struct {
	// URL is where the playlist was fetched from
	URL string

	// Text is the playlist body as fetched
	Text string

	// IsMaster indicates whether this is a master playlist with multiple variants
	IsMaster bool

	// Variants contains the variant streams (only populated for master playlists)
	// I-frame only variants are left out.
	Variants []variant.Variant

	// Renditions contains the EXT-X-MEDIA alternatives referenced by the variants
	Renditions []variant.Rendition

	// Segments contains segments for a media playlist
	Segments []segment.Segment

	// TargetDuration is the maximum segment duration in seconds (media playlists only)
	TargetDuration int
}

// Duration returns the sum of segment durations in seconds.
func (p *PlaylistInfo) Duration() float64 {
	var total float64
	for _, seg := range p.Segments {
		total += seg.Duration
	}
	return total
}

// Fetch downloads the playlist text at playlistURL.
func Fetch(ctx context.Context, client *http.Client, playlistURL string) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch playlist: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	return string(data), nil
}

// ParsePlaylist fetches and parses an HLS playlist from a URL.
func ParsePlaylist(ctx context.Context, client *http.Client, playlistURL string) (*PlaylistInfo, error) {
	text, err := Fetch(ctx, client, playlistURL)
	if err != nil {
		return nil, err
	}
	return Decode(text, playlistURL)
}

// Decode parses playlist text fetched from playlistURL. Relative URIs are resolved against it.
func Decode(text, playlistURL string) (*PlaylistInfo, error) {
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(text), true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}

	if listType == m3u8.MASTER {
		info, err := parseMasterPlaylist(playlist, text, playlistURL)
		if err != nil {
			return nil, err
		}
		info.Text = text
		return info, nil
	}

	mediaPlaylist, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	segments, targetDuration, err := mediaSegments(mediaPlaylist, playlistURL)
	if err != nil {
		return nil, err
	}

	return &PlaylistInfo{
		URL:            playlistURL,
		Text:           text,
		IsMaster:       false,
		Segments:       segments,
		TargetDuration: targetDuration,
	}, nil
}

// parseMasterPlaylist extracts variant and rendition information from a master playlist.
func parseMasterPlaylist(playlist m3u8.Playlist, text, masterURL string) (*PlaylistInfo, error) {
	masterPlaylist, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	bandwidths := renditionBandwidths(text)

	var (
		variants   []variant.Variant
		renditions []variant.Rendition
		seen       = make(map[string]bool)
	)

	for _, v := range masterPlaylist.Variants {
		if v == nil || v.Iframe {
			continue
		}

		variantURL, err := ResolveURL(masterURL, v.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve variant URL: %w", err)
		}

		variants = append(variants, variant.Variant{
			Bandwidth:      int(v.Bandwidth),
			Resolution:     v.Resolution,
			Codecs:         v.Codecs,
			AudioGroup:     v.Audio,
			SubtitlesGroup: v.Subtitles,
			PlaylistURL:    variantURL,
		})

		for _, alt := range v.Alternatives {
			if alt == nil {
				continue
			}

			key := alt.Type + "/" + alt.GroupId + "/" + alt.Name + "/" + alt.URI
			if seen[key] {
				continue
			}
			seen[key] = true

			rendition := variant.Rendition{
				Type:     alt.Type,
				GroupID:  alt.GroupId,
				Name:     alt.Name,
				Language: alt.Language,
				Default:  alt.Default,
			}
			rendition.Bandwidth = bandwidths[alt.Type+"/"+alt.GroupId+"/"+alt.Name]
			if alt.URI != "" {
				renditionURL, err := ResolveURL(masterURL, alt.URI)
				if err != nil {
					return nil, fmt.Errorf("failed to resolve rendition URL: %w", err)
				}
				rendition.PlaylistURL = renditionURL
			}
			renditions = append(renditions, rendition)
		}
	}

	if len(variants) == 0 {
		return nil, fmt.Errorf("master playlist contains no variants")
	}

	return &PlaylistInfo{
		URL:        masterURL,
		IsMaster:   true,
		Variants:   variants,
		Renditions: renditions,
	}, nil
}

// renditionBandwidths reads the BANDWIDTH attribute of EXT-X-MEDIA tags, which the
// playlist decoder drops, keyed by TYPE/GROUP-ID/NAME.
func renditionBandwidths(text string) map[string]int {
	out := make(map[string]int)
	for _, line := range Lines(text) {
		if !strings.HasPrefix(line, attrlist.TagMedia) {
			continue
		}
		attrs := attrlist.Parse(line, attrlist.TagMedia)
		if bw, ok := attrs.Int("BANDWIDTH"); ok && bw > 0 {
			out[attrs["TYPE"]+"/"+attrs["GROUP-ID"]+"/"+attrs["NAME"]] = int(bw)
		}
	}
	return out
}

// mediaSegments extracts resolved segments and the target duration from a media playlist.
func mediaSegments(mediaPlaylist *m3u8.MediaPlaylist, playlistURL string) ([]segment.Segment, int, error) {
	var segments []segment.Segment
	for i, seg := range mediaPlaylist.Segments {
		if seg == nil {
			break
		}

		// Resolve segment URL to absolute
		segmentURL, err := ResolveURL(playlistURL, seg.URI)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to resolve segment URL: %w", err)
		}

		segments = append(segments, segment.Segment{
			URL:      segmentURL,
			RawURI:   seg.URI,
			Duration: seg.Duration,
			Sequence: i,
		})
	}

	if len(segments) == 0 {
		return nil, 0, fmt.Errorf("playlist contains no segments")
	}

	targetDuration := int(mediaPlaylist.TargetDuration)
	if targetDuration == 0 {
		// If target duration is not set, use the max segment duration
		maxDuration := 0.0
		for _, seg := range segments {
			if seg.Duration > maxDuration {
				maxDuration = seg.Duration
			}
		}
		targetDuration = int(maxDuration) + 1
	}

	return segments, targetDuration, nil
}

// ResolveURL resolves a possibly relative URL against a base URL.
func ResolveURL(baseURL, relativeURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	rel, err := url.Parse(relativeURL)
	if err != nil {
		return "", fmt.Errorf("invalid relative URL: %w", err)
	}

	return base.ResolveReference(rel).String(), nil
}
