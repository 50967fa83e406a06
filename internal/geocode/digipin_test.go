package geocode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// precision is half a level-10 cell plus rounding slack, in degrees.
const precision = 1e-4

func TestDIGIPIN_Encode(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lng  float64
		want string
	}{
		{"new delhi", 28.6139, 77.2090, "39J-438-TJC7"},
		{"bengaluru", 12.9716, 77.5946, "4P3-JK8-52C9"},
		{"mumbai", 19.076, 72.8777, "4FK-595-8823"},
		{"south west corner", MinLat, MinLng, "LLL-LLL-LLLL"},
		{"north east corner", MaxLat, MaxLng, "888-888-8888"},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Encode(tt.lat, tt.lng)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDIGIPIN_EncodeOutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
	}{
		{"latitude below", 2.4, 77},
		{"latitude above", 38.6, 77},
		{"longitude below", 20, 63.4},
		{"longitude above", 20, 99.6},
		{"nan latitude", math.NaN(), 77},
		{"nan longitude", 20, math.NaN()},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Encode(tt.lat, tt.lng)
			assert.ErrorIs(t, err, ErrOutOfRange)
		})
	}
}

func TestDIGIPIN_Decode(t *testing.T) {
	p := New()

	got, err := p.Decode("39J-438-TJC7")
	require.NoError(t, err)
	assert.Equal(t, 28.613901, got.Latitude)
	assert.Equal(t, 77.208998, got.Longitude)

	// Hyphens are optional.
	bare, err := p.Decode("39J438TJC7")
	require.NoError(t, err)
	assert.Equal(t, got, bare)

	lower, err := p.Decode("39j-438-tjc7")
	require.NoError(t, err)
	assert.Equal(t, got, lower)
}

func TestDIGIPIN_DecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"too short", "39J-438"},
		{"too long", "39J-438-TJC77"},
		{"bad symbol", "39J-438-TJC0"},
		{"letters outside table", "ABC-DEF-GHIJ"},
		{"only hyphens", "---"},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Decode(tt.code)
			assert.ErrorIs(t, err, ErrInvalidCode)
		})
	}
}

func TestDIGIPIN_RoundTrip(t *testing.T) {
	p := New()
	points := []Coordinates{
		{28.6139, 77.2090},
		{8.5241, 76.9366},
		{34.0837, 74.7973},
		{22.5726, 88.3639},
		{3.0, 64.0},
		{38.49, 99.49},
	}

	for _, pt := range points {
		code, err := p.Encode(pt.Latitude, pt.Longitude)
		require.NoError(t, err)

		back, err := p.Decode(code)
		require.NoError(t, err)
		assert.InDelta(t, pt.Latitude, back.Latitude, precision, "latitude for %s", code)
		assert.InDelta(t, pt.Longitude, back.Longitude, precision, "longitude for %s", code)
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 28.613901, Round(28.6139012345, 6))
	assert.Equal(t, 77.21, Round(77.209999, 2))
	assert.Equal(t, -12.5, Round(-12.5, 1))
}
