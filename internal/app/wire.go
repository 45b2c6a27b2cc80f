package app

import (
	"errors"
	"path/filepath"

	"github.com/rs/zerolog"

	"skiff/internal/observability"
	"skiff/internal/store"
	"skiff/internal/transport"
)

// Wire bundles the stores, observability handles and base transport
// configuration for the binaries.
type Wire struct {
	HostKeys   *store.HostKeyFileStore
	KnownHosts *store.KnownHostsFileStore
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
	Transport  transport.Config
}

// NewWire constructs the dependency graph from cfg. The transport
// config it yields still lacks the per-role fields: the daemon adds
// its host keys, the client its trust callback.
func NewWire(cfg Config) (*Wire, error) {
	if cfg.Home == "" {
		return nil, errors.New("app: config needs a home directory")
	}

	// File-based stores
	hostKeys := store.NewHostKeyFileStore(cfg.Home)
	knownHosts := store.NewKnownHostsFileStore(filepath.Join(cfg.Home, "known_hosts"))

	logger := observability.NewLogger(cfg.Service, cfg.Version, cfg.LogOut)

	var metrics *observability.Metrics
	if cfg.Metrics {
		metrics = observability.NewMetrics()
	}

	return &Wire{
		HostKeys:   hostKeys,
		KnownHosts: knownHosts,
		Logger:     logger,
		Metrics:    metrics,
		Transport: transport.Config{
			Software: cfg.Software,
			Preferences: transport.Preferences{
				KexAlgorithms:     cfg.KexAlgorithms,
				HostKeyAlgorithms: cfg.HostKeyAlgorithms,
				Ciphers:           cfg.Ciphers,
				MACs:              cfg.MACs,
			},
			HandshakeTimeout: cfg.HandshakeTimeout,
			Logger:           logger,
			Metrics:          metrics,
		},
	}, nil
}
