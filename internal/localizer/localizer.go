// Package localizer plans the offline download of an HLS item: it selects the streams
// to keep, lists the files to fetch and produces playlists that reference them locally.
package localizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/agleyzer/hlslocalizer/internal/ident"
	"github.com/agleyzer/hlslocalizer/internal/parser"
	"github.com/agleyzer/hlslocalizer/internal/playlist"
	"github.com/agleyzer/hlslocalizer/internal/task"
	"github.com/agleyzer/hlslocalizer/internal/variant"
)

var (
	// ErrUnknownPlaylistType is returned when the fetched document is not an M3U8 playlist.
	ErrUnknownPlaylistType = errors.New("unknown playlist type")

	// ErrMalformedPlaylist is returned when a playlist cannot be decoded or has an unexpected shape.
	ErrMalformedPlaylist = errors.New("malformed playlist")
)

// Plan is the result of localizing one item.
type Plan struct {
	ItemID    string `json:"item_id"`
	SourceURL string `json:"source_url"`

	// Duration of the selected video stream in seconds
	Duration float64 `json:"duration"`

	// EstimatedSize is a rough download size in bytes derived from stream bitrates
	EstimatedSize int64 `json:"estimated_size"`

	Tasks []task.Task `json:"tasks"`

	// Master is the local master playlist, stored as playlist.MasterName
	Master string `json:"-"`

	// Media maps local media playlist paths to their rewritten text
	Media map[string]string `json:"-"`
}

// Files lists every path, relative to the item directory, the plan writes:
// the master playlist, the media playlists and every task destination.
func (p *Plan) Files() []string {
	files := []string{playlist.MasterName}

	media := make([]string, 0, len(p.Media))
	for path := range p.Media {
		media = append(media, path)
	}
	sort.Strings(media)
	files = append(files, media...)

	for _, t := range p.Tasks {
		files = append(files, t.Destination)
	}
	return files
}

// Localizer builds download plans.
type Localizer struct {
	client  *http.Client
	options Options
	logger  *slog.Logger
}

// New creates a Localizer. A nil client gets a default timeout.
func New(client *http.Client, options Options, logger *slog.Logger) (*Localizer, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: parser.DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Localizer{
		client:  client,
		options: options,
		logger:  logger,
	}, nil
}

// Options returns the validated selection options.
func (l *Localizer) Options() Options {
	return l.options
}

// Localize fetches the playlist at playlistURL and builds the download plan for itemID.
func (l *Localizer) Localize(ctx context.Context, itemID, playlistURL string) (*Plan, error) {
	info, err := l.load(ctx, playlistURL)
	if err != nil {
		return nil, err
	}

	var (
		video      variant.Stream
		renditions []variant.Stream
	)

	if info.IsMaster {
		selected := l.selectVariant(info.Variants)
		l.logger.Info("selected video variant",
			"bandwidth", selected.Bandwidth,
			"resolution", selected.Resolution,
			"codecs", selected.Codecs)

		video, err = l.loadStream(ctx, task.Video.String(), selected.PlaylistURL)
		if err != nil {
			return nil, err
		}
		video.Variant = &selected

		for _, r := range l.selectRenditions(selected, info.Renditions) {
			kind := task.Audio.String()
			if r.Type == "SUBTITLES" {
				kind = task.Text.String()
			}

			stream, err := l.loadStream(ctx, kind, r.PlaylistURL)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				l.logger.Warn("skipping rendition", "type", r.Type, "language", r.Language, "url", r.PlaylistURL, "error", err)
				continue
			}
			rendition := r
			stream.Rendition = &rendition
			renditions = append(renditions, stream)

			l.logger.Info("selected rendition", "type", r.Type, "language", r.Language, "name", r.Name)
		}
	} else {
		video = variant.Stream{
			Kind:           task.Video.String(),
			PlaylistURL:    info.URL,
			Text:           info.Text,
			Segments:       info.Segments,
			TargetDuration: info.TargetDuration,
		}
	}

	plan := &Plan{
		ItemID:    itemID,
		SourceURL: playlistURL,
		Duration:  duration(video),
		Media:     make(map[string]string),
	}

	seen := make(map[string]bool)
	for _, s := range append([]variant.Stream{video}, renditions...) {
		for _, t := range streamTasks(itemID, s) {
			if seen[t.Destination] {
				continue
			}
			seen[t.Destination] = true
			t.Order = len(plan.Tasks)
			plan.Tasks = append(plan.Tasks, t)
		}

		local, err := playlist.RewriteMedia(s.Text, s.PlaylistURL)
		if err != nil {
			return nil, fmt.Errorf("failed to rewrite %s playlist: %w", s.Kind, err)
		}
		plan.Media[ident.LocalPath(s.Kind, s.PlaylistURL)] = local

		plan.EstimatedSize += estimateSize(s, plan.Duration)
	}

	plan.Master, err = playlist.GenerateMaster(playlist.Version(info.Text), video, renditions)
	if err != nil {
		return nil, fmt.Errorf("failed to generate master playlist: %w", err)
	}

	l.logger.Info("built download plan",
		"item", itemID,
		"tasks", len(plan.Tasks),
		"duration", plan.Duration,
		"renditions", len(renditions))

	return plan, nil
}

// load fetches and decodes a playlist of either type.
func (l *Localizer) load(ctx context.Context, playlistURL string) (*parser.PlaylistInfo, error) {
	text, err := parser.Fetch(ctx, l.client, playlistURL)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(strings.TrimSpace(text), "#EXTM3U") {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlaylistType, playlistURL)
	}

	info, err := parser.Decode(text, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPlaylist, playlistURL, err)
	}
	return info, nil
}

// loadStream fetches a media playlist that is part of the selection.
func (l *Localizer) loadStream(ctx context.Context, kind, playlistURL string) (variant.Stream, error) {
	l.logger.Debug("loading media playlist", "kind", kind, "url", playlistURL)

	info, err := l.load(ctx, playlistURL)
	if err != nil {
		return variant.Stream{}, err
	}
	if info.IsMaster {
		return variant.Stream{}, fmt.Errorf("%w: expected media playlist at %s", ErrMalformedPlaylist, playlistURL)
	}

	return variant.Stream{
		Kind:           kind,
		PlaylistURL:    playlistURL,
		Text:           info.Text,
		Segments:       info.Segments,
		TargetDuration: info.TargetDuration,
	}, nil
}

// selectVariant picks the video variant to download. Variants using codecs outside
// the options are only considered when no variant uses the allowed codecs.
//
// Without a height or bitrate preference the highest-bandwidth variant wins. Otherwise
// each preference narrows the candidates to the variants that reach it (or, when none
// does, to those closest below it) and the lowest-bandwidth survivor is taken.
func (l *Localizer) selectVariant(variants []variant.Variant) variant.Variant {
	allowed := append(append([]string{}, l.options.VideoCodecs...), l.options.AudioCodecs...)

	var candidates []variant.Variant
	for _, v := range variants {
		if v.UsesOnly(allowed) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		l.logger.Warn("no variant uses the allowed codecs, considering all", "codecs", allowed)
		candidates = append(candidates, variants...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Bandwidth < candidates[j].Bandwidth
	})

	if l.options.VideoHeight == 0 && l.options.VideoBitrate == 0 {
		return candidates[len(candidates)-1]
	}

	if l.options.VideoHeight > 0 {
		candidates = atLeast(candidates, l.options.VideoHeight, variant.Variant.Height)
	}
	if l.options.VideoBitrate > 0 {
		candidates = atLeast(candidates, l.options.VideoBitrate, func(v variant.Variant) int { return v.Bandwidth })
	}
	return candidates[0]
}

// atLeast keeps the variants whose measure reaches floor. When none does it keeps
// the variants with the largest measure. Order is preserved.
func atLeast(variants []variant.Variant, floor int, measure func(variant.Variant) int) []variant.Variant {
	var (
		kept []variant.Variant
		top  int
	)
	for _, v := range variants {
		m := measure(v)
		if m >= floor {
			kept = append(kept, v)
		}
		if m > top {
			top = m
		}
	}
	if len(kept) > 0 {
		return kept
	}

	for _, v := range variants {
		if measure(v) == top {
			kept = append(kept, v)
		}
	}
	return kept
}

// selectRenditions returns the audio and subtitle renditions of v's groups chosen by the options.
// Renditions that declare no LANGUAGE are always selected; language filters apply to the rest.
// Renditions carried inside the variant stream have no playlist and are never selected.
func (l *Localizer) selectRenditions(v variant.Variant, all []variant.Rendition) []variant.Rendition {
	var (
		audio    []variant.Rendition
		text     []variant.Rendition
		fallback *variant.Rendition
	)

	for i, r := range all {
		if r.PlaylistURL == "" {
			continue
		}

		switch {
		case r.Type == "AUDIO" && r.GroupID == v.AudioGroup:
			switch {
			case l.options.AllAudioLanguages || r.Language == "":
				audio = append(audio, r)
			case len(l.options.AudioLanguages) > 0:
				if matchLanguage(r.Language, l.options.AudioLanguages) {
					audio = append(audio, r)
				}
			default:
				if fallback == nil || (r.Default && !fallback.Default) {
					fallback = &all[i]
				}
			}

		case r.Type == "SUBTITLES" && r.GroupID == v.SubtitlesGroup:
			if l.options.AllTextLanguages || r.Language == "" || matchLanguage(r.Language, l.options.TextLanguages) {
				text = append(text, r)
			}
		}
	}

	if fallback != nil && len(audio) == 0 {
		audio = append(audio, *fallback)
	}

	return append(audio, text...)
}

// streamTasks lists the downloads of one stream: its init section, its AES keys and its segments.
func streamTasks(itemID string, s variant.Stream) []task.Task {
	var tasks []task.Task

	if mapURL, ok := parser.FindMap(s.Text, s.PlaylistURL); ok {
		tasks = append(tasks, task.Task{
			ItemID:      itemID,
			ContentURL:  mapURL,
			Type:        task.Init,
			Destination: ident.LocalPath(s.Kind, mapURL),
		})
	}

	for _, keyURL := range parser.KeyURIs(s.Text, s.PlaylistURL) {
		tasks = append(tasks, task.Task{
			ItemID:      itemID,
			ContentURL:  keyURL,
			Type:        task.Key,
			Destination: ident.LocalPath(playlist.KeyDir, keyURL),
		})
	}

	typ, err := task.ParseType(s.Kind)
	if err != nil {
		typ = task.Video
	}
	for _, seg := range s.Segments {
		tasks = append(tasks, task.Task{
			ItemID:      itemID,
			ContentURL:  seg.URL,
			Type:        typ,
			Destination: ident.LocalPath(s.Kind, seg.URL),
		})
	}

	return tasks
}

func duration(s variant.Stream) float64 {
	var total float64
	for _, seg := range s.Segments {
		total += seg.Duration
	}
	return total
}

// estimateSize returns the expected byte size of a stream lasting seconds.
func estimateSize(s variant.Stream, seconds float64) int64 {
	var bitrate int
	switch {
	case s.Variant != nil:
		bitrate = s.Variant.Bandwidth
	case s.Rendition != nil && s.Rendition.Type == "AUDIO":
		bitrate = s.Rendition.Bandwidth
		if bitrate <= 0 {
			bitrate = DefaultAudioBitrate
		}
	}
	return int64(float64(bitrate) * seconds / 8)
}
