package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New initializes a JSON slog.Logger writing to stdout.
// Log level can be debug, info, warn, error.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops everything. Used by tests and the CLI.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MaskPhone keeps only the last four digits of a phone number.
func MaskPhone(phone string) string {
	p := strings.TrimSpace(phone)
	if p == "" {
		return ""
	}
	if len(p) <= 4 {
		return "****"
	}
	return "****" + p[len(p)-4:]
}

// RedactEmail keeps the first character of the local part and the domain.
func RedactEmail(mail string) string {
	at := strings.LastIndex(mail, "@")
	if at <= 0 {
		return "***"
	}
	return mail[:1] + "***" + mail[at:]
}
