package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"companion-ai/internal/config"
)

// New builds the process logger: a console writer in development and JSON in
// production, optionally teed into a rotating file. The returned closer
// flushes the file and is safe to call when no file is configured.
func New(cfg config.LogConfig, production bool) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var stdout io.Writer = os.Stdout
	if !production {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	out := stdout
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     30,
			Compress:   true,
		}
		closer = rotator
		out = zerolog.MultiLevelWriter(stdout, rotator)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
