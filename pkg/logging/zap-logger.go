package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextFieldsKey struct{}

type ZapLogger struct {
	inner *zap.Logger
}

func NewZapLogger(level zapcore.Level) (*ZapLogger, error) {
	s := defaultSettings(zap.NewAtomicLevelAt(level))
	logger, err := s.config.Build(s.opts...)
	if err != nil {
		return nil, err
	}
	return &ZapLogger{inner: logger}, nil
}

// NewNopZapLogger returns a logger that discards everything. Intended for tests.
func NewNopZapLogger() *ZapLogger {
	return &ZapLogger{inner: zap.NewNop()}
}

// WithContextFields attaches fields to the context so every *Ctx call
// made with it carries them.
func WithContextFields(ctx context.Context, fields ...zap.Field) context.Context {
	existing, _ := ctx.Value(contextFieldsKey{}).([]zap.Field)
	merged := make([]zap.Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, contextFieldsKey{}, merged)
}

func (l *ZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.inner.Debug(msg, l.combine(ctx, fields)...)
}

func (l *ZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.inner.Info(msg, l.combine(ctx, fields)...)
}

func (l *ZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.inner.Warn(msg, l.combine(ctx, fields)...)
}

func (l *ZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.inner.Error(msg, l.combine(ctx, fields)...)
}

func (l *ZapLogger) Sync() error {
	return l.inner.Sync()
}

func (l *ZapLogger) combine(ctx context.Context, fields []zap.Field) []zap.Field {
	contextFields, _ := ctx.Value(contextFieldsKey{}).([]zap.Field)
	if len(contextFields) == 0 {
		return fields
	}
	combined := make([]zap.Field, 0, len(contextFields)+len(fields))
	combined = append(combined, contextFields...)
	combined = append(combined, fields...)
	return combined
}
