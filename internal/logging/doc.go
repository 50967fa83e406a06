// Package logging provides structured logging with OpenTelemetry integration.
//
// Logger wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stderr console + OpenTelemetry)
//   - Context field injection (trace_id, span_id, source, request.id)
//   - Secret redaction at the encoder
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.FromObservability(appCfg.Observability)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSource(ctx, logging.SourceMenu)
//	logger.Info(ctx, "conversion completed", zap.String("code", code))
//
// # Testing
//
// Use TestLogger for assertions:
//
//	tl := logging.NewTestLogger()
//	wf, _ := conversion.New(geocode.New(), store, conversion.WithLogger(tl.Logger))
//	tl.AssertLogged(t, zapcore.WarnLevel, "notification failed")
package logging
