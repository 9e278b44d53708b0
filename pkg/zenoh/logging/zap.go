package logging

import (
	"context"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZap returns a Logger that writes through the provided zap.Logger. Passing
// nil yields a no-op zap logger. Arguments follow the slog convention of
// alternating keys and values; slog.Attr values are accepted as well.
func NewZap(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapLogger{logger: logger}
}

type zapLogger struct {
	logger *zap.Logger
}

func (l *zapLogger) write(ctx context.Context, level zapcore.Level, msg string, args []any) {
	ce := l.logger.Check(level, msg)
	if ce == nil {
		return
	}
	fs := fields(FromContext(ctx))
	ce.Write(append(fs, fields(args)...)...)
}

func (l *zapLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.DebugLevel, msg, args)
}

func (l *zapLogger) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.InfoLevel, msg, args)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.WarnLevel, msg, args)
}

func (l *zapLogger) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.ErrorLevel, msg, args)
}

func (l *zapLogger) With(args ...any) Logger {
	return &zapLogger{logger: l.logger.With(fields(args)...)}
}

func fields(args []any) []zap.Field {
	if len(args) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case zap.Field:
			out = append(out, a)
		case slog.Attr:
			out = append(out, zap.Any(a.Key, a.Value.Any()))
		case string:
			if i+1 < len(args) {
				out = append(out, field(a, args[i+1]))
				i++
			} else {
				out = append(out, zap.String("!BADKEY", a))
			}
		default:
			out = append(out, zap.Any("!BADKEY", a))
		}
	}
	return out
}

func field(key string, v any) zap.Field {
	if err, ok := v.(error); ok {
		return zap.NamedError(key, err)
	}
	return zap.Any(key, v)
}
