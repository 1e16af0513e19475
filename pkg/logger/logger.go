// Package logger provides structured, component-tagged logging backed by zerolog.
package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	log = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init configures the global logger level and output format. level is one of
// debug|info|warn|error (case-insensitive); unrecognized values default to info.
func Init(level string, pretty bool) {
	mu.Lock()
	defer mu.Unlock()

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var w = os.Stdout
	if pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(w).With().Timestamp().Logger()
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug logs an unqualified debug-level message.
func Debug(msg string) { current().Debug().Msg(msg) }

// Info logs an unqualified info-level message.
func Info(msg string) { current().Info().Msg(msg) }

// Warn logs an unqualified warn-level message.
func Warn(msg string) { current().Warn().Msg(msg) }

// Error logs an unqualified error-level message.
func Error(msg string) { current().Error().Msg(msg) }

// DebugCF logs a component-tagged debug message with structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	withFields(current().Debug(), component, fields).Msg(msg)
}

// InfoCF logs a component-tagged info message with structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	withFields(current().Info(), component, fields).Msg(msg)
}

// WarnCF logs a component-tagged warn message with structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	withFields(current().Warn(), component, fields).Msg(msg)
}

// ErrorCF logs a component-tagged error message with structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	withFields(current().Error(), component, fields).Msg(msg)
}

func withFields(ev *zerolog.Event, component string, fields map[string]interface{}) *zerolog.Event {
	ev = ev.Str("component", component)
	if len(fields) == 0 {
		return ev
	}
	return ev.Fields(fields)
}
