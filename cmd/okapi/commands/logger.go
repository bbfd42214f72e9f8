package commands

import (
	"os"
	"time"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// newLogger builds the structured logger handed to the client library. Log
// lines go to stderr so they never mix with command output on stdout.
func newLogger() okapi.Logger {
	level := zerolog.WarnLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}

	writer := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
		w.TimeFormat = time.Kitchen
	})

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()

	return &zerologAdapter{logger: logger}
}

// zerologAdapter adapts a zerolog.Logger to the okapi.Logger interface.
type zerologAdapter struct {
	logger zerolog.Logger
}

func (a *zerologAdapter) Debug(msg string, fields map[string]interface{}) {
	a.logger.Debug().Fields(fields).Msg(msg)
}

func (a *zerologAdapter) Info(msg string, fields map[string]interface{}) {
	a.logger.Info().Fields(fields).Msg(msg)
}

func (a *zerologAdapter) Warn(msg string, fields map[string]interface{}) {
	a.logger.Warn().Fields(fields).Msg(msg)
}

func (a *zerologAdapter) Error(msg string, fields map[string]interface{}) {
	a.logger.Error().Fields(fields).Msg(msg)
}
