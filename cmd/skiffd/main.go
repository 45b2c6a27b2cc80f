package main

import (
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"skiff/internal/app"
	"skiff/internal/kex"
	"skiff/internal/observability"
	"skiff/internal/transport"
)

const version = "0.1.0"

var (
	home        string
	listenAddr  string
	metricsAddr string
	timeout     time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "skiffd",
		Short: "Key-exchange daemon for the skiff remote-shell transport",
	}
	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.skiff)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Listen for connections and answer key exchanges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":2222", "transport listen address")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics", "", "Prometheus listen address (empty disables)")
	serveCmd.Flags().DurationVar(&timeout, "handshake-timeout", 0, "handshake timeout (default 30s)")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		home = filepath.Join(dir, ".skiff")
	}

	wire, err := app.NewWire(app.Config{
		Home:             home,
		Software:         "skiffd_" + version,
		Service:          "skiffd",
		Version:          version,
		HandshakeTimeout: timeout,
		Metrics:          true,
	})
	if err != nil {
		return err
	}
	logger := wire.Logger

	passphrase := os.Getenv("SKIFFD_PASSPHRASE")
	if passphrase == "" {
		return errors.New("SKIFFD_PASSPHRASE must be set to unlock the host keys")
	}
	keys, certs, err := wire.HostKeys.LoadKeys(passphrase)
	if err != nil {
		return err
	}

	cfg := wire.Transport
	cfg.HostKeys = keys

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()
	logger.Info().
		Str("addr", ln.Addr().String()).
		Strs("host_key_algorithms", keys.Algorithms()).
		Int("certificates", len(certs)).
		Msg("listening")

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", wire.Metrics.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
		logger.Info().Str("addr", metricsAddr).Msg("metrics listening")
	}

	for {
		nc, err := ln.Accept()
		if err != nil {
			return err
		}
		go handle(nc, cfg, logger)
	}
}

func handle(nc net.Conn, cfg transport.Config, base zerolog.Logger) {
	defer nc.Close()

	logger, connID := observability.ConnLogger(base, nc.RemoteAddr().String())
	cfg.Logger = logger
	logger.Info().Msg("connection accepted")

	conn, err := transport.Server(nc, cfg)
	if err != nil {
		if kex.SeverityOf(err) == kex.SeverityProcessFatal {
			base.Fatal().Str("conn_id", connID).Err(err).Msg("cryptographic failure, stopping")
		}
		logger.Warn().Err(err).Msg("handshake failed")
		return
	}
	defer conn.Close()

	if err := conn.Serve(); err != nil {
		logger.Warn().Err(err).Msg("connection ended with error")
		return
	}
	logger.Info().Msg("connection closed")
}
