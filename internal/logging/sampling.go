// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with one sampler per configured level.
// Levels without an entry, and Error and above, are never sampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	sampled := make(map[zapcore.Level]bool, len(cfg.Levels))
	cores := make([]zapcore.Core, 0, len(cfg.Levels)+1)

	for level, rate := range cfg.Levels {
		if level >= zapcore.ErrorLevel {
			continue
		}
		sampled[level] = true
		lvl := level
		only := &levelFilterCore{Core: core, accept: func(l zapcore.Level) bool { return l == lvl }}
		cores = append(cores, zapcore.NewSamplerWithOptions(only, cfg.Tick.Duration(), rate.Initial, rate.Thereafter))
	}

	passthrough := &levelFilterCore{Core: core, accept: func(l zapcore.Level) bool { return !sampled[l] }}
	cores = append(cores, passthrough)

	return zapcore.NewTee(cores...)
}

// levelFilterCore forwards only the levels accept allows.
type levelFilterCore struct {
	zapcore.Core
	accept func(zapcore.Level) bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.accept(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves level filtering.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:   c.Core.With(fields),
		accept: c.accept,
	}
}
