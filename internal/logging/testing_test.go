package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestTestLogger_Assertions(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Info(ctx, "history appended", zap.String("kind", "encode"), zap.Int("size", 3))

	tl.AssertLogged(t, zapcore.InfoLevel, "history appended")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "history appended")
	tl.AssertField(t, "history appended", "kind", "encode")
	tl.AssertField(t, "history appended", "size", int64(3))
	tl.AssertNoSecrets(t)
	assert.Equal(t, 1, tl.FilterMessage("appended").Len())

	tl.Reset()
	assert.Empty(t, tl.All())
}

func TestTestLogger_RedactedSecretPasses(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "nats", RedactedString("nats_token", "abc"))
	tl.AssertNoSecrets(t)
}
