package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/digipin/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampledLogger(levels map[zapcore.Level]LevelSamplingConfig) (*Logger, *observer.ObservedLogs) {
	core, observed := observer.New(TraceLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels:  levels,
	})
	return &Logger{zap: zap.New(sampled), config: NewDefaultConfig()}, observed
}

func TestSampling_DropsAfterInitial(t *testing.T) {
	l, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel: {Initial: 3, Thereafter: 0},
	})

	for i := 0; i < 10; i++ {
		l.Info(context.Background(), "tick")
	}
	assert.Equal(t, 3, observed.Len())
}

func TestSampling_ErrorsNeverSampled(t *testing.T) {
	l, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel:  {Initial: 1, Thereafter: 0},
		zapcore.ErrorLevel: {Initial: 1, Thereafter: 0},
	})

	for i := 0; i < 5; i++ {
		l.Error(context.Background(), "storage failed")
	}
	assert.Equal(t, 5, observed.Len())
}

func TestSampling_UnconfiguredLevelPassesThrough(t *testing.T) {
	l, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.DebugLevel: {Initial: 1, Thereafter: 0},
	})

	for i := 0; i < 4; i++ {
		l.Warn(context.Background(), "slow locator")
		l.Debug(context.Background(), "noise")
	}
	assert.Equal(t, 4, observed.FilterMessage("slow locator").Len())
	assert.Equal(t, 1, observed.FilterMessage("noise").Len())
}

func TestSampling_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Same(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}
