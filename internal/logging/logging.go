// Package logging builds the service logger on top of kataras/golog.
package logging

import (
	"io"
	"strings"

	"github.com/kataras/golog"
)

// New returns a logger writing to out at the given level
// (debug, info, warn, error or disable). Unknown levels fall back to info.
func New(level string, out io.Writer) *golog.Logger {
	l := golog.New()
	if out != nil {
		l.SetOutput(out)
	}
	l.SetTimeFormat("2006-01-02 15:04:05")
	l.SetLevel(normalizeLevel(level))
	return l
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *golog.Logger {
	l := golog.New()
	l.SetOutput(io.Discard)
	l.SetLevel("disable")
	return l
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return "debug"
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	case "disable", "none", "off":
		return "disable"
	default:
		return "info"
	}
}
