// Package attrlist decodes HLS attribute lists (RFC 8216 section 4.2) from playlist tag lines.
//
// Values are returned raw: quoted-strings lose their surrounding quotes, everything else
// is kept as written. Malformed input never produces an error; the parser recovers what it
// can and moves on, because playlists in the wild are frequently non-conformant.
package attrlist

import (
	"strconv"
	"strings"
)

// Tag prefixes that carry attribute lists, including the trailing colon.
const (
	TagStreamInf       = "#EXT-X-STREAM-INF:"
	TagIFrameStreamInf = "#EXT-X-I-FRAME-STREAM-INF:"
	TagMedia           = "#EXT-X-MEDIA:"
	TagKey             = "#EXT-X-KEY:"
	TagSessionKey      = "#EXT-X-SESSION-KEY:"
	TagMap             = "#EXT-X-MAP:"
	TagStart           = "#EXT-X-START:"
)

// Attributes maps attribute names to raw values.
type Attributes map[string]string

// Parse strips prefix from line and decodes the remaining attribute list.
// A line that does not start with prefix, or has nothing after it, yields an empty mapping.
func Parse(line, prefix string) Attributes {
	if !strings.HasPrefix(line, prefix) {
		return Attributes{}
	}

	rest := line[len(prefix):]
	if strings.TrimSpace(rest) == "" {
		return Attributes{}
	}

	return ParseList(rest)
}

// ParseList decodes a bare attribute list such as `METHOD=AES-128,URI="key.bin"`.
// Duplicate names keep the last value.
func ParseList(list string) Attributes {
	attrs := Attributes{}
	n := len(list)
	i := 0

	for i < n {
		// Attribute name runs up to '='. Reaching a top-level ',' first means
		// the entry is malformed and gets dropped.
		start := i
		for i < n && list[i] != '=' && list[i] != ',' {
			if list[i] == '"' {
				i = skipQuoted(list, i)
				continue
			}
			i++
		}
		if i >= n || list[i] == ',' {
			i++
			continue
		}

		name := strings.TrimSpace(list[start:i])
		i++

		for i < n && isSpace(list[i]) {
			i++
		}

		var value string
		if i < n && list[i] == '"' {
			i++
			end := strings.IndexByte(list[i:], '"')
			if end < 0 {
				// unterminated, take the rest of the line
				value = list[i:]
				i = n
			} else {
				value = list[i : i+end]
				i += end + 1
			}
			// anything between the closing quote and the next comma is junk
			for i < n && list[i] != ',' {
				i++
			}
		} else {
			start = i
			for i < n && list[i] != ',' {
				i++
			}
			value = strings.TrimSpace(list[start:i])
		}
		i++

		if name == "" {
			continue
		}
		attrs[name] = value
	}

	return attrs
}

// skipQuoted returns the index just past the quoted run starting at list[i].
// A quote with no partner is stepped over like any other character.
func skipQuoted(list string, i int) int {
	end := strings.IndexByte(list[i+1:], '"')
	if end < 0 {
		return i + 1
	}
	return i + end + 2
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// Get returns the raw value of name.
func (a Attributes) Get(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

// Int returns name decoded as a decimal-integer.
func (a Attributes) Int(name string) (int64, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// Resolution returns name decoded as a decimal-resolution (e.g. 1280x720).
func (a Attributes) Resolution(name string) (width, height int, ok bool) {
	v, found := a[name]
	if !found {
		return 0, 0, false
	}

	w, h, found := strings.Cut(strings.ToLower(v), "x")
	if !found {
		return 0, 0, false
	}

	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	return width, height, true
}

// Bool reports whether name is the enumerated-string YES.
func (a Attributes) Bool(name string) bool {
	return a[name] == "YES"
}
