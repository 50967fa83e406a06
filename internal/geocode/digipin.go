package geocode

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Errors returned by the DIGIPIN provider.
var (
	ErrOutOfRange  = errors.New("coordinate out of range")
	ErrInvalidCode = errors.New("invalid DIGIPIN")
)

// Bounds of the DIGIPIN grid in degrees.
const (
	MinLat = 2.5
	MaxLat = 38.5
	MinLng = 63.5
	MaxLng = 99.5
)

const levels = 10

// grid holds the symbol table, row 0 being the northernmost band.
var grid = [4][4]byte{
	{'F', 'C', '9', '8'},
	{'J', '3', '2', '7'},
	{'K', '4', '5', '6'},
	{'L', 'M', 'P', 'T'},
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Provider converts between coordinates and codes.
type Provider interface {
	Encode(lat, lng float64) (string, error)
	Decode(code string) (Coordinates, error)
}

// DIGIPIN is the reference Provider implementation.
type DIGIPIN struct{}

// New returns the DIGIPIN provider.
func New() DIGIPIN {
	return DIGIPIN{}
}

// Encode returns the 10-symbol code for the cell containing (lat, lng).
func (DIGIPIN) Encode(lat, lng float64) (string, error) {
	if math.IsNaN(lat) || lat < MinLat || lat > MaxLat {
		return "", fmt.Errorf("%w: latitude %v not in [%v, %v]", ErrOutOfRange, lat, MinLat, MaxLat)
	}
	if math.IsNaN(lng) || lng < MinLng || lng > MaxLng {
		return "", fmt.Errorf("%w: longitude %v not in [%v, %v]", ErrOutOfRange, lng, MinLng, MaxLng)
	}

	minLat, maxLat := MinLat, MaxLat
	minLng, maxLng := MinLng, MaxLng

	var b strings.Builder
	b.Grow(levels + 2)

	for level := 1; level <= levels; level++ {
		latDiv := (maxLat - minLat) / 4
		lngDiv := (maxLng - minLng) / 4

		row := 3 - int(math.Floor((lat-minLat)/latDiv))
		col := int(math.Floor((lng - minLng) / lngDiv))
		row = clamp(row, 0, 3)
		col = clamp(col, 0, 3)

		b.WriteByte(grid[row][col])
		if level == 3 || level == 6 {
			b.WriteByte('-')
		}

		maxLat = minLat + latDiv*float64(4-row)
		minLat = minLat + latDiv*float64(3-row)
		minLng = minLng + lngDiv*float64(col)
		maxLng = minLng + lngDiv
	}

	return b.String(), nil
}

// Decode returns the centre of the cell identified by code, rounded to six
// decimal places.
func (DIGIPIN) Decode(code string) (Coordinates, error) {
	pin := strings.ReplaceAll(code, "-", "")
	if len(pin) != levels {
		return Coordinates{}, fmt.Errorf("%w: want %d symbols, got %d", ErrInvalidCode, levels, len(pin))
	}

	minLat, maxLat := MinLat, MaxLat
	minLng, maxLng := MinLng, MaxLng

	for i := 0; i < len(pin); i++ {
		row, col, ok := locate(pin[i])
		if !ok {
			return Coordinates{}, fmt.Errorf("%w: unexpected symbol %q", ErrInvalidCode, pin[i])
		}

		latDiv := (maxLat - minLat) / 4
		lngDiv := (maxLng - minLng) / 4

		lat1 := maxLat - latDiv*float64(row+1)
		lat2 := maxLat - latDiv*float64(row)
		lng1 := minLng + lngDiv*float64(col)
		lng2 := minLng + lngDiv*float64(col+1)

		minLat, maxLat = lat1, lat2
		minLng, maxLng = lng1, lng2
	}

	return Coordinates{
		Latitude:  Round((minLat+maxLat)/2, 6),
		Longitude: Round((minLng+maxLng)/2, 6),
	}, nil
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func locate(c byte) (row, col int, ok bool) {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	for r := range grid {
		for k := range grid[r] {
			if grid[r][k] == c {
				return r, k, true
			}
		}
	}
	return 0, 0, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
