package log

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var commitID string

func OrderID(id uuid.UUID) zap.Field {
	return zap.String("order_id", id.String())
}

// NewLogger builds the JSON logger. An empty path logs to stdout.
func NewLogger(level, path string) (*zap.SugaredLogger, error) {
	if path == "" {
		path = "stdout"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.Config{
		Level:       lvl,
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.999999Z07:00"),
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	}

	l, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar().With(zap.String("commit_id", commitID)), nil
}
