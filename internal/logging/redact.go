// internal/logging/redact.go
package logging

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/digipin/internal/config"
)

const (
	maxPatternLen = 200
	redacted      = "[REDACTED]"
)

// Secret creates a Zap field for config.Secret that records only its length.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString creates a Zap field with redacted value and length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// rules is the compiled form of a RedactionConfig. It is shared by clones.
type rules struct {
	keys     map[string]bool
	patterns []*regexp.Regexp
	coords   map[string]bool
	places   int
}

func compileRules(cfg RedactionConfig) (*rules, error) {
	r := &rules{
		keys:   lowerSet(cfg.Fields),
		coords: lowerSet(cfg.CoordinateFields),
		places: cfg.CoordinatePlaces,
	}
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}

func (r *rules) secret(key string) bool {
	return r.keys[strings.ToLower(key)]
}

func (r *rules) coordinate(key string) bool {
	return r.coords[strings.ToLower(key)]
}

func (r *rules) matches(val string) bool {
	for _, re := range r.patterns {
		if re.MatchString(val) {
			return true
		}
	}
	return false
}

// coarsen truncates v toward zero so the logged value names the containing
// grid square rather than the exact position.
func (r *rules) coarsen(v float64) float64 {
	p := math.Pow(10, float64(r.places))
	return math.Trunc(v*p) / p
}

// RedactingEncoder wraps a zapcore.Encoder. It masks secret-bearing fields
// and values, and coarsens coordinate fields to a fixed precision.
type RedactingEncoder struct {
	zapcore.Encoder
	rules *rules
}

// NewRedactingEncoder wraps an encoder with redaction rules.
// Returns error if any redaction pattern fails to compile.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base, rules: &rules{}}, nil
	}
	r, err := compileRules(cfg)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, rules: r}, nil
}

func (e *RedactingEncoder) AddString(key, val string) {
	switch {
	case e.rules.secret(key):
		e.Encoder.AddString(key, redacted)
	case e.rules.matches(val):
		e.Encoder.AddString(key, "[REDACTED:pattern]")
	default:
		e.Encoder.AddString(key, val)
	}
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.rules.secret(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddFloat64(key string, val float64) {
	if e.rules.coordinate(key) {
		val = e.rules.coarsen(val)
	}
	e.Encoder.AddFloat64(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.rules.secret(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.rules.secret(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// EncodeEntry routes per-call fields through the redaction rules. The base
// encoder would otherwise add them to itself directly.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	c := &RedactingEncoder{Encoder: e.Encoder.Clone(), rules: e.rules}
	for i := range fields {
		fields[i].AddTo(c)
	}
	return c.Encoder.EncodeEntry(ent, nil)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), rules: e.rules}
}
