// Package location resolves the user's current position.
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/digipin/internal/config"
	"github.com/fyrsmithlabs/digipin/internal/geocode"
)

// Position is a resolved location in decimal degrees.
type Position struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Rounded returns p rounded to six decimal places.
func (p Position) Rounded() Position {
	return Position{
		Latitude:  geocode.Round(p.Latitude, 6),
		Longitude: geocode.Round(p.Longitude, 6),
	}
}

// Locator resolves the current position.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// Code classifies a location failure.
type Code int

const (
	CodeUnknown Code = iota
	CodePermissionDenied
	CodePositionUnavailable
	CodeTimeout
	CodeNotSupported
)

func (c Code) String() string {
	switch c {
	case CodePermissionDenied:
		return "permission_denied"
	case CodePositionUnavailable:
		return "position_unavailable"
	case CodeTimeout:
		return "timeout"
	case CodeNotSupported:
		return "not_supported"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Every error returned by a Locator is an *Error
// matching exactly one of them.
var (
	ErrPermissionDenied    = &Error{Code: CodePermissionDenied}
	ErrPositionUnavailable = &Error{Code: CodePositionUnavailable}
	ErrTimeout             = &Error{Code: CodeTimeout}
	ErrUnknown             = &Error{Code: CodeUnknown}
	ErrNotSupported        = &Error{Code: CodeNotSupported}
)

// Error is a classified location failure.
type Error struct {
	Code Code
	Err  error
}

func newError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "location: " + e.Code.String()
	}
	return fmt.Sprintf("location: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Failed to get location."
	}
	switch e.Code {
	case CodePermissionDenied:
		return "Location permission denied."
	case CodePositionUnavailable:
		return "Location unavailable."
	case CodeTimeout:
		return "Location request timed out."
	case CodeNotSupported:
		return "Geolocation not supported on this system."
	default:
		return "Failed to get location."
	}
}

// Remediation returns a follow-up hint for err, or "" when there is none.
func Remediation(err error) string {
	if errors.Is(err, ErrPermissionDenied) {
		return "Open system location settings"
	}
	return ""
}

// Static always returns the configured position.
type Static struct {
	Position Position
}

func (s Static) Locate(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, classifyContext(err)
	}
	return s.Position.Rounded(), nil
}

// Unsupported reports that no location source is available.
type Unsupported struct{}

func (Unsupported) Locate(context.Context) (Position, error) {
	return Position{}, newError(CodeNotSupported, errors.New("no location provider configured"))
}

// New returns the locator selected by cfg.
func New(cfg config.LocationConfig, opts ...IPOption) (Locator, error) {
	switch cfg.Provider {
	case config.LocationIP, "":
		return NewIP(cfg, opts...)
	case config.LocationStatic:
		return Static{Position: Position{Latitude: cfg.StaticLat, Longitude: cfg.StaticLng}}, nil
	case config.LocationNone:
		return Unsupported{}, nil
	default:
		return nil, fmt.Errorf("unknown location provider %q", cfg.Provider)
	}
}

func classifyContext(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CodeTimeout, err)
	}
	return newError(CodeUnknown, err)
}
