package mediasoupclient

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
)

var (
	// defaultLoggerImpl is a zerolog instance with console writer
	defaultLoggerImpl = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		color, _ := strconv.ParseBool(os.Getenv("DEBUG_COLORS"))
		w.NoColor = !color
		w.TimeFormat = "2006-01-02 15:04:05.999"
	})).With().Timestamp().Logger()

	defaultLoggerLevel = zerolog.InfoLevel

	// NewLogger defines function to create logger instance. Scopes are
	// prefixed with "mediasoup-client:" when matched against DEBUG, so
	// DEBUG="mediasoup-client:*,-mediasoup-client:EventEmitter" works as in
	// the JavaScript client.
	NewLogger = func(scope string) logr.Logger {
		level := defaultLoggerLevel

		if debugEnabled(os.Getenv("DEBUG"), "mediasoup-client:"+scope) {
			level = zerolog.DebugLevel
		}

		logger := defaultLoggerImpl.Level(level)

		return zerologr.New(&logger).WithName(scope)
	}
)

// debugEnabled reports whether scope matches the comma separated glob list.
// A pattern prefixed with "-" disables the matching scopes; the last matching
// pattern wins.
func debugEnabled(patterns, scope string) bool {
	enabled := false

	for _, part := range strings.Split(patterns, ",") {
		part = strings.TrimSpace(part)
		if len(part) == 0 {
			continue
		}
		negated := strings.HasPrefix(part, "-")
		if negated {
			part = part[1:]
		}
		if g, err := glob.Compile(part); err == nil && g.Match(scope) {
			enabled = !negated
		}
	}

	return enabled
}

func init() {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.999Z07:00"
	zerologr.VerbosityFieldName = ""
}
