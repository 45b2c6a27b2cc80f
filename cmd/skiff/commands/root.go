package commands

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"skiff/internal/app"
)

const version = "0.1.0"

var (
	home       string
	passphrase string
	wire       *app.Wire

	kexAlgos     string
	hostKeyAlgos string
	ciphers      string
	macs         string
	timeout      time.Duration
	verbose      bool
)

func Execute() error {
	root := &cobra.Command{
		Use:   "skiff",
		Short: "Key-exchange client for the skiff remote-shell transport",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".skiff")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			logOut := io.Writer(io.Discard)
			if verbose {
				logOut = os.Stderr
			}
			w, err := app.NewWire(app.Config{
				Home:              home,
				Software:          "skiff_" + version,
				Service:           "skiff",
				Version:           version,
				LogOut:            logOut,
				KexAlgorithms:     splitList(kexAlgos),
				HostKeyAlgorithms: splitList(hostKeyAlgos),
				Ciphers:           splitList(ciphers),
				MACs:              splitList(macs),
				HandshakeTimeout:  timeout,
			})
			if err != nil {
				return err
			}
			wire = w
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.skiff)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting stored keys")
	root.PersistentFlags().StringVar(&kexAlgos, "kex", "", "comma-separated key exchange preference list")
	root.PersistentFlags().StringVar(&hostKeyAlgos, "host-key-algorithms", "", "comma-separated host key algorithm list")
	root.PersistentFlags().StringVar(&ciphers, "ciphers", "", "comma-separated cipher preference list")
	root.PersistentFlags().StringVar(&macs, "macs", "", "comma-separated MAC preference list")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "handshake timeout (default 30s)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log handshake progress to stderr")

	root.AddCommand(keygenCmd(), fingerprintCmd(), dialCmd())
	return root.Execute()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
