package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"skiff/internal/hostkey"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print fingerprints of the stored host keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			keys, _, err := wire.HostKeys.LoadKeys(passphrase)
			if err != nil {
				return err
			}
			for _, algorithm := range keys.Algorithms() {
				key, err := keys.Signer(algorithm)
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", algorithm, hostkey.Fingerprint(key))
			}
			return nil
		},
	}
}
