package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Duration is a time.Duration that loads from "10s"-style text. A bare
// number is read as seconds, so DIGIPIN_LOCATION_TIMEOUT=10 works.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	parsed, err := time.ParseDuration(s)
	if err != nil {
		secs, nerr := strconv.ParseFloat(s, 64)
		if nerr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		parsed = time.Duration(secs * float64(time.Second))
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret is a credential loaded from config, such as storage.nats_token.
// Every printed or serialized form is masked; only Value exposes it.
type Secret string

const maskedSecret = "[REDACTED]"

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return maskedSecret
}

func (s Secret) String() string { return s.masked() }

func (s Secret) GoString() string { return "Secret(" + maskedSecret + ")" }

// Value returns the actual secret value.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a value was configured.
func (s Secret) IsSet() bool {
	return s != ""
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.masked())
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.masked()), nil
}

// UnmarshalText accepts the raw value.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
