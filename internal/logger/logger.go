package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "ecommerce-api"

// NewLogger builds the process logger for env ("production", "development" or "test").
// Passwords, hashes, tokens and the signing secret must never be passed as fields.
// In production, email fields are masked before they reach the encoder.
func NewLogger(env string) (*zap.Logger, error) {
	var (
		config zap.Config
		opts   []zap.Option
	)

	if env == "production" {
		config = productionConfig()
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewSamplerWithOptions(newRedactingCore(core), time.Second, 100, 100)
		}))
	} else {
		config = developmentConfig(env)
	}

	logger, err := config.Build(opts...)
	if err != nil {
		return nil, err
	}

	logger.Info("Logger initialized",
		zap.String("environment", env),
		zap.String("service", serviceName))

	return logger, nil
}

// productionConfig emits JSON at warn level. Sampling is installed by NewLogger
// around the redacting core.
func productionConfig() zap.Config {
	return zap.Config{
		Level:       zap.NewAtomicLevelAt(zap.WarnLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// developmentConfig emits colored console output; tests only see errors.
func developmentConfig(env string) zap.Config {
	level := zap.InfoLevel
	if env == "test" {
		level = zap.ErrorLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}
