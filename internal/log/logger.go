package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Production output is uncoloured and never
// below info, whatever level is configured.
func New(environment, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("env", environment).
		Logger()

	zerolog.SetGlobalLevel(parseLevel(environment, level))
	return logger
}

func parseLevel(environment, level string) zerolog.Level {
	parsed := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		parsed = zerolog.DebugLevel
	case "warn":
		parsed = zerolog.WarnLevel
	case "error":
		parsed = zerolog.ErrorLevel
	}

	if environment == "production" && parsed < zerolog.InfoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}
