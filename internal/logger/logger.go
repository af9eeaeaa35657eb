package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"JMLogPump/internal/config"
)

const sentryFlushTimeout = 2 * time.Second

// InitZap инициализирует zap-логгер:
// - в stderr выводятся сообщения от cfg.Level и выше (stdout остаётся под отчёт);
// - в файл cfg.LogFile пишутся только ошибки (Error+);
// - при EnableSentry ошибки дополнительно уходят в Sentry.
func InitZap(cfg *config.LoggingConfig) (*zap.Logger, error) {
	return build(cfg, os.Stderr)
}

func build(cfg *config.LoggingConfig, console io.Writer) (*zap.Logger, error) {
	consoleLevel, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("уровень логирования %q: %w", cfg.Level, err)
	}

	encoder := newEncoder(cfg.Encoding)
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(console)), consoleLevel),
	}

	// Файловое ядро только для ошибок
	if cfg.LogFile != "" {
		if dir := filepath.Dir(cfg.LogFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
			}
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("не удалось открыть лог-файл %s: %w", cfg.LogFile, err)
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(f), zapcore.ErrorLevel))
	}

	logger := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	if cfg.EnableSentry && cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			logger.Warn("Sentry init failed", zap.Error(err))
		} else {
			logger = logger.WithOptions(zap.Hooks(sentryHook))
		}
	}
	return logger, nil
}

func newEncoder(encoding string) zapcore.Encoder {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if encoding == "json" {
		encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(encoderCfg)
	}
	return zapcore.NewConsoleEncoder(encoderCfg)
}

// sentryHook отправляет Error+ в Sentry с именем компонента в тегах
func sentryHook(entry zapcore.Entry) error {
	if entry.Level < zapcore.ErrorLevel {
		return nil
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if entry.LoggerName != "" {
			scope.SetTag("component", entry.LoggerName)
		}
		scope.SetTag("caller", entry.Caller.TrimmedPath())
		sentry.CaptureMessage(entry.Message)
	})
	sentry.Flush(sentryFlushTimeout)
	return nil
}
