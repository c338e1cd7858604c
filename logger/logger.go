// Package logger configures structured logging for the experiment runner.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Logger is the root logger. Component loggers derive from it.
var Logger = newLogger(os.Stderr, log.InfoLevel)

var output io.Writer = os.Stderr

func newLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           level,
	})
	l.SetStyles(styles())
	return l
}

// Configure sets level and destination. An empty level falls back to
// LIBET_LOG_LEVEL, then to info. Log records never go to stdout because
// the terminal display owns it during a session.
func Configure(level string, logFile string) error {
	if level == "" {
		level = os.Getenv("LIBET_LOG_LEVEL")
	}

	var w io.Writer = os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return err
		}
		w = file
	}
	output = w
	Logger = newLogger(w, parseLevel(level))
	return nil
}

// SetOutput redirects the root logger, keeping its level.
func SetOutput(w io.Writer) {
	output = w
	Logger = newLogger(w, Logger.GetLevel())
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// New creates a component logger with a prefix, e.g. "trial" or "xid".
func New(prefix string) *log.Logger {
	l := newLogger(output, Logger.GetLevel())
	l.SetPrefix(prefix)
	return l
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	s.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("33")).
		Foreground(lipgloss.Color("15"))
	s.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("214")).
		Foreground(lipgloss.Color("15"))
	s.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("196")).
		Foreground(lipgloss.Color("15"))

	s.Keys["phase"] = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	s.Keys["condition"] = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	s.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	s.Values["phase"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	return s
}
