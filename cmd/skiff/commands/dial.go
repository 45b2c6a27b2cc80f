package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/spf13/cobra"

	"skiff/internal/hostkey"
	"skiff/internal/store"
	"skiff/internal/transport"
)

func dialCmd() *cobra.Command {
	var (
		rekey     bool
		acceptNew bool
	)
	cmd := &cobra.Command{
		Use:   "dial <host:port>",
		Short: "Run a key exchange against a skiffd server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				return fmt.Errorf("address must be host:port: %w", err)
			}

			nc, err := net.Dial("tcp", addr)
			if err != nil {
				return err
			}
			defer nc.Close()

			cfg := wire.Transport
			cfg.VerifyHostKey = func(blob []byte) error {
				return verifyTrust(cmd, wire.KnownHosts, host, blob, acceptNew)
			}

			conn, err := transport.Client(nc, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			printExchange(cmd.OutOrStdout(), conn)

			if rekey {
				if err := conn.Rekey(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-exchange complete (%d total); session id unchanged: %x\n",
					conn.Exchanges(), conn.SessionID())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rekey, "rekey", false, "run a second exchange before closing")
	cmd.Flags().BoolVar(&acceptNew, "accept-new", false, "trust unknown host keys without prompting")
	return cmd
}

// verifyTrust checks blob against known_hosts. An unknown host prompts
// for first use (or is recorded outright with --accept-new); a changed
// key is always fatal.
func verifyTrust(cmd *cobra.Command, trust store.TrustStore, host string, blob []byte, acceptNew bool) error {
	err := trust.Verify(host, blob)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrUnknownHost) {
		return err
	}

	pub, perr := hostkey.ParsePublicKey(blob)
	if perr != nil {
		return perr
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Host %s offers a %s key.\nFingerprint: %s\n", host, pub.Algorithm(), hostkey.Fingerprint(pub))
	if !acceptNew {
		ok, perr := confirm(cmd.InOrStdin(), out)
		if perr != nil {
			return perr
		}
		if !ok {
			return err
		}
	}
	if err := trust.Add(host, blob); err != nil {
		return err
	}
	fmt.Fprintf(out, "Permanently added %s to known hosts.\n", host)
	return nil
}

func confirm(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "Trust this key and continue (yes/no)? ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.TrimSpace(line)
	return answer == "yes" || answer == "y", nil
}

func printExchange(out io.Writer, conn *transport.Conn) {
	n := conn.Negotiated()
	fmt.Fprintf(out, "Server version: %s\n", conn.ServerVersion())
	fmt.Fprintf(out, "Key exchange:   %s\n", n.Kex)
	fmt.Fprintf(out, "Host key:       %s\n", n.HostKey)
	fmt.Fprintf(out, "Ciphers:        %s / %s\n", n.CipherClientToServer, n.CipherServerToClient)
	fmt.Fprintf(out, "MACs:           %s / %s\n", n.MACClientToServer, n.MACServerToClient)
	fmt.Fprintf(out, "Session id:     %x\n", conn.SessionID())
}
