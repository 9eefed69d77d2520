package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the service logger. Development gets a human-readable console
// writer at debug level; anything else logs JSON at info level.
func New(environment string) zerolog.Logger {
	if strings.EqualFold(environment, "development") {
		return zerolog.New(zerolog.NewConsoleWriter()).
			With().Timestamp().Logger().
			Level(zerolog.DebugLevel)
	}
	return zerolog.New(os.Stdout).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)
}
