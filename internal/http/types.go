package http

import (
	"encoding/json"

	"github.com/fyrsmithlabs/digipin/internal/history"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status    string           `json:"status"`
	Version   string           `json:"version,omitempty"`
	History   HistoryStatus    `json:"history"`
	Telemetry *TelemetryStatus `json:"telemetry,omitempty"`
}

// HistoryStatus summarizes the stored history.
type HistoryStatus struct {
	Items int `json:"items"`
	Limit int `json:"limit"`
}

// TelemetryStatus reports exporter health.
type TelemetryStatus struct {
	Healthy  bool     `json:"healthy"`
	Degraded bool     `json:"degraded"`
	Reasons  []string `json:"reasons,omitempty"`
}

// EncodeRequest is the request body for POST /api/v1/encode. Coordinates
// are accepted as JSON numbers or strings.
type EncodeRequest struct {
	Lat Coordinate `json:"lat"`
	Lng Coordinate `json:"lng"`
}

// EncodeResponse is the response body for POST /api/v1/encode.
type EncodeResponse struct {
	Code string `json:"code"`
}

// DecodeRequest is the request body for POST /api/v1/decode.
type DecodeRequest struct {
	Code string `json:"code"`
}

// DecodeResponse is the response body for POST /api/v1/decode.
type DecodeResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SelectionRequest is the request body for POST /api/v1/selection.
type SelectionRequest struct {
	Text string `json:"text"`
}

// SelectionResponse is the response body for POST /api/v1/selection.
type SelectionResponse struct {
	Outcome string `json:"outcome"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// HistoryResponse is the response body for the history endpoints.
type HistoryResponse struct {
	Items []history.Item `json:"items"`
	Limit int            `json:"limit"`
}

// LimitRequest is the request body for PUT /api/v1/history/limit.
type LimitRequest struct {
	Limit int `json:"limit"`
}

// MapsResponse is the response body for GET /api/v1/maps.
type MapsResponse struct {
	URL string `json:"url"`
}

// Coordinate is the raw text of a JSON number or string.
type Coordinate string

// UnmarshalJSON keeps the literal text so the conversion workflow parses
// it exactly as typed.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = Coordinate(text)
		return nil
	}
	if s == "null" {
		*c = ""
		return nil
	}
	*c = Coordinate(s)
	return nil
}
