package playlist

import (
	"fmt"
	"strings"

	"github.com/agleyzer/hlslocalizer/internal/attrlist"
	"github.com/agleyzer/hlslocalizer/internal/ident"
	"github.com/agleyzer/hlslocalizer/internal/parser"
)

// KeyDir is the directory AES keys are stored in, next to the stream directories.
const KeyDir = "key"

// RewriteMedia rewrites a media playlist fetched from base so that it references
// downloaded files. Segment and EXT-X-MAP URIs become ident.SegmentPath names in the
// playlist's own directory; AES-128 key URIs point into the sibling key directory.
// Blank lines are dropped and other lines are kept as they are.
func RewriteMedia(text, base string) (string, error) {
	var b strings.Builder

	for _, line := range parser.Lines(text) {
		switch {
		case parser.IsAESKey(line):
			rewritten, err := rewriteURIAttr(line, attrlist.TagKey, base, "../"+KeyDir+"/")
			if err != nil {
				return "", err
			}
			line = rewritten

		case strings.HasPrefix(line, attrlist.TagMap):
			rewritten, err := rewriteURIAttr(line, attrlist.TagMap, base, "")
			if err != nil {
				return "", err
			}
			line = rewritten

		case strings.HasPrefix(line, "#"):
			// other tags and comments pass through

		default:
			resolved, err := parser.ResolveURL(base, line)
			if err != nil {
				return "", fmt.Errorf("failed to resolve segment %q: %w", line, err)
			}
			line = ident.SegmentPath(resolved)
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// rewriteURIAttr replaces the URI attribute of a tag line with dir + the local name of the resolved URI.
func rewriteURIAttr(line, prefix, base, dir string) (string, error) {
	uri, ok := attrlist.Parse(line, prefix).Get("URI")
	if !ok || uri == "" {
		return line, nil
	}

	resolved, err := parser.ResolveURL(base, uri)
	if err != nil {
		return "", fmt.Errorf("failed to resolve URI %q: %w", uri, err)
	}

	local := dir + ident.SegmentPath(resolved)
	quoted := `URI="` + uri + `"`
	if strings.Contains(line, quoted) {
		return strings.Replace(line, quoted, `URI="`+local+`"`, 1), nil
	}
	return strings.Replace(line, "URI="+uri, `URI="`+local+`"`, 1), nil
}
