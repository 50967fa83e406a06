package location

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/digipin/internal/config"
	"github.com/fyrsmithlabs/digipin/internal/logging"
)

const maxResponseSize = 64 * 1024

// IP resolves the position from an IP geolocation HTTP endpoint. The
// latitude and longitude are read from the JSON response with gjson paths.
type IP struct {
	url        string
	latPath    string
	lngPath    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// IPOption configures an IP locator.
type IPOption func(*IP)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) IPOption {
	return func(l *IP) {
		if c != nil {
			l.httpClient = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) IPOption {
	return func(l *IP) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewIP creates an IP locator from cfg.
func NewIP(cfg config.LocationConfig, opts ...IPOption) (*IP, error) {
	if cfg.URL == "" {
		return nil, errors.New("location url is required")
	}

	latPath, lngPath := cfg.LatPath, cfg.LngPath
	if latPath == "" {
		latPath = "latitude"
	}
	if lngPath == "" {
		lngPath = "longitude"
	}

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
	}

	l := &IP{
		url:        cfg.URL,
		latPath:    latPath,
		lngPath:    lngPath,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Locate queries the endpoint once.
func (l *IP) Locate(ctx context.Context) (Position, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return Position{}, classifyContext(ctx.Err())
		}
		// The wait would outlast the deadline.
		return Position{}, newError(CodeTimeout, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Position{}, newError(CodeUnknown, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Position{}, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Position{}, classifyTransport(ctx, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Position{}, newError(CodePermissionDenied, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Position{}, newError(CodePositionUnavailable, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return Position{}, newError(CodeUnknown, fmt.Errorf("status %d", resp.StatusCode))
	}

	if !gjson.ValidBytes(body) {
		return Position{}, newError(CodePositionUnavailable, errors.New("response is not valid JSON"))
	}
	results := gjson.GetManyBytes(body, l.latPath, l.lngPath)
	lat, latOK := number(results[0])
	lng, lngOK := number(results[1])
	if !latOK || !lngOK {
		return Position{}, newError(CodePositionUnavailable,
			fmt.Errorf("response has no coordinates at %q and %q", l.latPath, l.lngPath))
	}

	pos := Position{Latitude: lat, Longitude: lng}.Rounded()
	l.logger.Debug(ctx, "location resolved",
		zap.Float64("lat", pos.Latitude),
		zap.Float64("lng", pos.Longitude),
	)
	return pos, nil
}

// number accepts JSON numbers and numeric strings.
func number(r gjson.Result) (float64, bool) {
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func classifyTransport(ctx context.Context, err error) *Error {
	if ctx.Err() != nil {
		return classifyContext(ctx.Err())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(CodeTimeout, err)
	}
	return newError(CodePositionUnavailable, err)
}
