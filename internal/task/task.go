// Package task describes the files a download item needs fetched to play offline.
package task

import "fmt"

// Type is the kind of resource a task downloads.
type Type int

const (
	Video Type = iota
	Audio
	Text
	Key
	Init
)

var typeNames = [...]string{"video", "audio", "text", "key", "init"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown task type %q", s)
}

// Task is a single resource download.
type Task struct {
	ItemID string `json:"item_id"`

	// ContentURL is the absolute remote URL
	ContentURL string `json:"content_url"`

	Type Type `json:"type"`

	// Destination is relative to the item's download directory
	Destination string `json:"destination"`

	// Order is the task's 0-based position in its item's plan
	Order int `json:"order"`
}

// MarshalText lets Type appear by name in JSON.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
