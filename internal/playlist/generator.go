// Package playlist writes the local copies of HLS playlists that point at downloaded files.
package playlist

import (
	"fmt"
	"strings"

	"github.com/agleyzer/hlslocalizer/internal/ident"
	"github.com/agleyzer/hlslocalizer/internal/variant"
)

// MasterName is the file name of the local master playlist, relative to the item directory.
const MasterName = "master.m3u8"

// DefaultVersion is written when the source playlist declares no EXT-X-VERSION.
const DefaultVersion = 3

// GenerateMaster creates the local master playlist for the selected video stream
// and its audio and text renditions. Media playlist URIs point at ident.LocalPath locations.
func GenerateMaster(version int, video variant.Stream, renditions []variant.Stream) (string, error) {
	if video.PlaylistURL == "" {
		return "", fmt.Errorf("video stream has no playlist URL")
	}
	if version <= 0 {
		version = DefaultVersion
	}

	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString(fmt.Sprintf("#EXT-X-VERSION:%d\n", version))

	groups := make(map[string]string)
	for _, r := range renditions {
		if r.Rendition == nil {
			return "", fmt.Errorf("%s stream %s has no rendition info", r.Kind, r.PlaylistURL)
		}

		rend := r.Rendition
		groups[rend.Type] = rend.GroupID

		b.WriteString("#EXT-X-MEDIA:")
		b.WriteString(fmt.Sprintf("TYPE=%s,GROUP-ID=%q", rend.Type, rend.GroupID))
		b.WriteString(fmt.Sprintf(",NAME=%q", displayName(rend)))
		if rend.Language != "" {
			b.WriteString(fmt.Sprintf(",LANGUAGE=%q", rend.Language))
		}
		if rend.Default {
			b.WriteString(",DEFAULT=YES,AUTOSELECT=YES")
		} else {
			b.WriteString(",DEFAULT=NO,AUTOSELECT=YES")
		}
		b.WriteString(fmt.Sprintf(",URI=%q\n", ident.LocalPath(r.Kind, r.PlaylistURL)))
	}

	var v variant.Variant
	if video.Variant != nil {
		v = *video.Variant
	}

	b.WriteString("#EXT-X-STREAM-INF:")
	b.WriteString(fmt.Sprintf("BANDWIDTH=%d", v.Bandwidth))

	if v.Resolution != "" {
		b.WriteString(fmt.Sprintf(",RESOLUTION=%s", v.Resolution))
	}

	if v.Codecs != "" {
		b.WriteString(fmt.Sprintf(",CODECS=\"%s\"", v.Codecs))
	}

	if g, ok := groups["AUDIO"]; ok {
		b.WriteString(fmt.Sprintf(",AUDIO=%q", g))
	}
	if g, ok := groups["SUBTITLES"]; ok {
		b.WriteString(fmt.Sprintf(",SUBTITLES=%q", g))
	}

	b.WriteString("\n")
	b.WriteString(ident.LocalPath(video.Kind, video.PlaylistURL))
	b.WriteString("\n")

	return b.String(), nil
}

func displayName(r *variant.Rendition) string {
	if r.Name != "" {
		return r.Name
	}
	if r.Language != "" {
		return r.Language
	}
	return r.GroupID
}

// Version returns the EXT-X-VERSION declared in text, or 0.
func Version(text string) int {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#EXT-X-VERSION:") {
			continue
		}
		var v int
		if _, err := fmt.Sscanf(strings.TrimPrefix(line, "#EXT-X-VERSION:"), "%d", &v); err == nil {
			return v
		}
	}
	return 0
}
