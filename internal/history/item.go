// Package history persists the bounded, most-recent-first list of
// conversions together with its retention limit.
package history

import (
	"fmt"
	"time"
)

// Kind is the direction of a conversion.
type Kind string

const (
	KindEncode Kind = "encode"
	KindDecode Kind = "decode"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindEncode || k == KindDecode
}

// Item is one successful conversion. Items are never mutated after creation.
type Item struct {
	Kind      Kind   `json:"kind" yaml:"kind" toml:"kind"`
	Input     string `json:"input" yaml:"input" toml:"input"`
	Output    string `json:"output" yaml:"output" toml:"output"`
	Timestamp int64  `json:"ts" yaml:"ts" toml:"ts"` // milliseconds since the Unix epoch
}

// NewItem stamps a conversion with at.
func NewItem(kind Kind, input, output string, at time.Time) Item {
	return Item{
		Kind:      kind,
		Input:     input,
		Output:    output,
		Timestamp: at.UnixMilli(),
	}
}

// Time returns the creation time.
func (i Item) Time() time.Time {
	return time.UnixMilli(i.Timestamp)
}

func (i Item) String() string {
	return fmt.Sprintf("%s %s -> %s", i.Kind, i.Input, i.Output)
}
