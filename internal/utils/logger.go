package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func InitLogger(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	SetLogOutput(os.Stderr)
}

// SetLogOutput redirects console logging. The live display parks log lines
// elsewhere so they do not tear the progress area.
func SetLogOutput(w io.Writer) {
	output := zerolog.ConsoleWriter{
		Out:        zerolog.SyncWriter(w),
		TimeFormat: time.DateTime,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}
