package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. dev gets debug output, everything else info.
func New(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "dev" {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
}
