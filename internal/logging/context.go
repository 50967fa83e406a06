// internal/logging/context.go
package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Source identifies the surface that started a conversion.
type Source string

const (
	SourceMenu  Source = "menu"
	SourcePanel Source = "panel"
	SourceHTTP  Source = "http"
	SourceCLI   Source = "cli"
)

type sourceCtxKey struct{}
type requestCtxKey struct{}

const maxRequestIDLen = 128

var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ContextFields returns the correlation fields carried by ctx: trace and
// span ids of a valid span, the source surface and the request id.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	if source := SourceFromContext(ctx); source != "" {
		fields = append(fields, zap.String("source", string(source)))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

// WithSource tags ctx with the surface that started the work.
func WithSource(ctx context.Context, source Source) context.Context {
	return context.WithValue(ctx, sourceCtxKey{}, source)
}

// SourceFromContext returns the conversion source, or "" when unset.
func SourceFromContext(ctx context.Context) Source {
	s, _ := ctx.Value(sourceCtxKey{}).(Source)
	return s
}

// ValidRequestID reports whether id is accepted by WithRequestID.
func ValidRequestID(id string) bool {
	return checkRequestID(id) == nil
}

// WithRequestID adds a request id to ctx. It panics on an id rejected by
// ValidRequestID; callers holding untrusted input check first.
func WithRequestID(ctx context.Context, id string) context.Context {
	if err := checkRequestID(id); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

func checkRequestID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("request id cannot be empty")
	case !utf8.ValidString(id):
		return fmt.Errorf("request id contains invalid UTF-8")
	case len(id) > maxRequestIDLen:
		return fmt.Errorf("request id exceeds max length %d", maxRequestIDLen)
	case !requestIDPattern.MatchString(id):
		return fmt.Errorf("request id %q must be alphanumeric, hyphen or underscore", id)
	}
	return nil
}
