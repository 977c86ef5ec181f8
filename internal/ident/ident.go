// Package ident derives stable cache identifiers from strings such as segment and key URLs.
package ident

import (
	"crypto/md5" //nolint:gosec // MD5 used for cache key generation, not security
	"encoding/hex"
	"net/url"
	"path"
)

// Size is the length of every identifier.
const Size = md5.Size * 2

// Of returns the lowercase hex MD5 digest of input.
func Of(input string) string {
	sum := md5.Sum([]byte(input)) //nolint:gosec // MD5 used for cache key generation, not security
	return hex.EncodeToString(sum[:])
}

// Valid reports whether id looks like a value returned by Of.
func Valid(id string) bool {
	if len(id) != Size {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// SegmentPath returns the local file name for a downloaded resource:
// the identifier of rawURL followed by the extension of its path.
func SegmentPath(rawURL string) string {
	return Of(rawURL) + extension(rawURL)
}

// LocalPath returns the path of a downloaded resource under its kind's directory,
// e.g. video/<id>.m3u8 or key/<id>.
func LocalPath(kind, rawURL string) string {
	return kind + "/" + SegmentPath(rawURL)
}

func extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return path.Ext(p)
}
