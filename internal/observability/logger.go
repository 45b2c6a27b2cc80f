package observability

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NewLogger creates the root structured logger for a process.
func NewLogger(service, version string, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()
}

// ConnLogger derives a per-connection logger carrying a fresh connection
// id and the remote address, and returns that id.
func ConnLogger(base zerolog.Logger, remoteAddr string) (zerolog.Logger, string) {
	id := uuid.NewString()
	logger := base.With().
		Str("conn_id", id).
		Str("remote_addr", remoteAddr).
		Logger()
	return logger, id
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
