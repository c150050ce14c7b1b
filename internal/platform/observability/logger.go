package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/requestctx"
)

const defaultLogLevel = "info"

// LoggerOptions tune NewLogger. The zero value logs JSON at LOG_LEVEL (default info).
type LoggerOptions struct {
	Level       string
	Development bool
	Service     string
	Version     string
}

// NewLogger builds the service logger. Field names follow Cloud Logging conventions
// (message, timestamp, severity) so entries are parsed without an agent config.
func NewLogger(opts LoggerOptions) (*zap.Logger, error) {
	levelText := strings.TrimSpace(opts.Level)
	if levelText == "" {
		levelText = os.Getenv("LOG_LEVEL")
	}
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(levelText)))); err != nil || levelText == "" {
		_ = level.UnmarshalText([]byte(defaultLogLevel))
	}

	encoding := "json"
	if opts.Development {
		encoding = "console"
	}

	cfg := zap.Config{
		Level:    level,
		Encoding: encoding,
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			TimeKey:       "timestamp",
			LevelKey:      "severity",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
			EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
				enc.AppendString(strings.ToUpper(l.String()))
			},
		},
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !opts.Development,
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	var fields []zap.Field
	if opts.Service != "" {
		fields = append(fields, zap.String("service", opts.Service))
	}
	if opts.Version != "" {
		fields = append(fields, zap.String("version", opts.Version))
	}
	return logger.With(fields...), nil
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext returns the request scoped logger, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}
