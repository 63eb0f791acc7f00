// Package logging собирает *slog.Logger для клиента и сервера.
// Если задан файл, вывод идёт в него с ротацией через lumberjack.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config настройки логирования
type Config struct {
	Level string
	// File путь к файлу лога; пусто = писать в fallback writer
	File string
	// MaxSizeMB размер файла до ротации
	MaxSizeMB int
	// MaxBackups сколько ротированных файлов хранить
	MaxBackups int
	// MaxAgeDays сколько дней хранить ротированные файлы
	MaxAgeDays int
}

// ParseLevel разбирает уровень логирования (debug, info, warn, error)
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// New создаёт логгер. Возвращаемый io.Closer закрывает файл лога (для stderr это no-op).
func New(cfg Config, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if cfg.Level != "" {
		var err error
		if level, err = ParseLevel(cfg.Level); err != nil {
			return nil, nil, err
		}
	}

	var (
		out    = fallback
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		}
		out = rotating
		closer = rotating
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
