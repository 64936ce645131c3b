// Package applog wires up the CLI's structured logging: a devlog
// handler for interactive terminal output and a per-invocation
// correlation id so every log line from one encode/decode/legacy run
// can be grepped out of a shared log stream.
package applog

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
	"hermannm.dev/devlog"
)

// Level is shared by callers that toggle verbosity via a --debug flag.
var Level slog.LevelVar

// Init installs the devlog handler as the default slog logger, writing
// to w.
func Init(w io.Writer) {
	slog.SetDefault(slog.New(devlog.NewHandler(w, &devlog.Options{
		Level: &Level,
	})))
}

// Operation returns a logger tagged with a fresh correlation id and the
// invocation's mode, to be used for every log line emitted during one
// CLI run.
func Operation(mode string) *slog.Logger {
	return slog.Default().With(
		"operation_id", uuid.New().String(),
		"mode", mode,
	)
}
