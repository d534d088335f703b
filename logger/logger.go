// Package logger provides structured logging with zap, optionally writing to a rotated file.
package logger

import (
	"io"
	"os"

	"github.com/amirphl/humanflow/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a zap.Logger from the logging configuration and the deployment environment.
func New(cfg config.LoggingConfig, env string) *zap.Logger {
	return NewWithWriter(cfg, env, nil)
}

// NewWithWriter is New with an explicit stdout replacement, used by tests.
func NewWithWriter(cfg config.LoggingConfig, env string, stdout io.Writer) *zap.Logger {
	level := parseLevel(cfg.Level, env)

	var encoderCfg zapcore.EncoderConfig
	if env == "production" {
		encoderCfg = zap.NewProductionEncoderConfig()
	} else {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	if stdout == nil {
		stdout = os.Stdout
	}

	var sinks []zapcore.WriteSyncer
	switch cfg.Output {
	case "file":
		sinks = append(sinks, fileSink(cfg))
	case "both":
		sinks = append(sinks, zapcore.AddSync(stdout), fileSink(cfg))
	default:
		sinks = append(sinks, zapcore.AddSync(stdout))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(core, opts...).With(zap.String("env", env))
}

func fileSink(cfg config.LoggingConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

func parseLevel(level, env string) zapcore.Level {
	if level == "" {
		if env == "production" {
			return zapcore.InfoLevel
		}
		return zapcore.DebugLevel
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
