// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Setup replaces the default logger. Unknown levels fall back to info.
func Setup(level, format string) {
	SetupWriter(level, format, os.Stderr)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(level, format string, out io.Writer) {
	var writer log.Writer = &log.IOWriter{Writer: out}
	if strings.EqualFold(format, FormatConsole) {
		writer = &log.ConsoleWriter{Writer: out, ColorOutput: false, QuoteString: true}
	}

	log.DefaultLogger = log.Logger{
		Level:      parseLevel(level),
		TimeField:  "ts",
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Writer:     writer,
	}
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
		return log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	}
	return log.InfoLevel
}
