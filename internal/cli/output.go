package cli

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/minted-protocol/canton-bridge/internal/logging"
)

// newLogger builds the CLI logger: verbose runs log to stderr so JSON
// output on stdout stays parseable, quiet runs discard.
func newLogger(verbose bool, errWriter io.Writer) *slog.Logger {
	if !verbose {
		return logging.Discard()
	}
	return slog.New(slog.NewTextHandler(errWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
