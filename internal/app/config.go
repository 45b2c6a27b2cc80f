package app

import (
	"io"
	"time"
)

// Config holds runtime wiring options for building the tools.
type Config struct {
	Home     string    // config directory, e.g. $HOME/.skiff
	Software string    // banner software token, e.g. skiff_0.1.0
	Service  string    // service name stamped on every log line
	Version  string    // release version stamped on every log line
	LogOut   io.Writer // log destination; defaults to stdout

	// Algorithm preference lists. Empty means the full supported set.
	KexAlgorithms     []string
	HostKeyAlgorithms []string
	Ciphers           []string
	MACs              []string

	HandshakeTimeout time.Duration

	// Metrics builds the Prometheus instruments. They register against
	// the default registry, so at most one Wire per process sets this.
	Metrics bool
}
