package conversion

import "errors"

var (
	// ErrInvalidInput means the input could not be parsed or lies outside
	// the provider's range.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCode means the provider rejected a code.
	ErrInvalidCode = errors.New("invalid DIGIPIN")

	// ErrProviderFailure wraps any other provider error.
	ErrProviderFailure = errors.New("geocode provider failure")

	// ErrStorage means the conversion succeeded but recording it failed.
	ErrStorage = errors.New("history storage failure")
)
