package cli

import (
	"io"
	"log"
	"os"

	"clinical-case-service/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging points the standard logger at stderr, tee'd into a rotated file
// when one is configured. The returned closer flushes the file.
func setupLogging(cfg config.Config) (*log.Logger, io.Closer) {
	if cfg.Logging.File == "" {
		return log.Default(), nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Logging.File,
		MaxSize:    orDefault(cfg.Logging.MaxSizeMB, 50),
		MaxBackups: orDefault(cfg.Logging.MaxBackups, 5),
		MaxAge:     orDefault(cfg.Logging.MaxAgeDays, 14),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return log.Default(), rotator
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
