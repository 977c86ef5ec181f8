package parser

import (
	"strings"

	"github.com/agleyzer/hlslocalizer/internal/attrlist"
)

// MethodAES128 is the EXT-X-KEY METHOD whose keys are downloaded alongside segments.
const MethodAES128 = "AES-128"

// FindMap returns the URI of the first EXT-X-MAP tag in a media playlist, resolved against base.
// Reports false when there is no EXT-X-MAP or the first one lacks a usable URI.
func FindMap(text, base string) (string, bool) {
	for _, line := range Lines(text) {
		if !strings.HasPrefix(line, attrlist.TagMap) {
			continue
		}

		uri, ok := attrlist.Parse(line, attrlist.TagMap).Get("URI")
		if !ok || uri == "" {
			return "", false
		}

		resolved, err := ResolveURL(base, uri)
		if err != nil {
			return "", false
		}
		return resolved, true
	}
	return "", false
}

// KeyURIs returns the distinct AES-128 key URIs of a media playlist in order of appearance,
// resolved against base. Keys without a URI, or with one that does not parse, are skipped.
func KeyURIs(text, base string) []string {
	var uris []string
	seen := make(map[string]bool)

	for _, line := range Lines(text) {
		if !IsAESKey(line) {
			continue
		}

		uri, ok := attrlist.Parse(line, attrlist.TagKey).Get("URI")
		if !ok || uri == "" {
			continue
		}

		resolved, err := ResolveURL(base, uri)
		if err != nil || seen[resolved] {
			continue
		}
		seen[resolved] = true
		uris = append(uris, resolved)
	}

	return uris
}

// IsAESKey reports whether line is an EXT-X-KEY tag with METHOD=AES-128.
func IsAESKey(line string) bool {
	if !strings.HasPrefix(line, attrlist.TagKey) {
		return false
	}
	return attrlist.Parse(line, attrlist.TagKey)["METHOD"] == MethodAES128
}

// Lines splits playlist text into trimmed, non-empty lines. Lines of any length are kept.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
