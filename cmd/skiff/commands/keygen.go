package commands

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"skiff/internal/hostkey"
)

func keygenCmd() *cobra.Command {
	var algorithm string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a host key and store it encrypted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			key, err := generateKey(algorithm)
			if err != nil {
				return err
			}
			if err := wire.HostKeys.SaveKey(passphrase, key); err != nil {
				return err
			}
			fmt.Printf("Generated %s host key.\nFingerprint: %s\n", key.Algorithm(), hostkey.Fingerprint(key))
			return nil
		},
	}
	cmd.Flags().StringVarP(&algorithm, "type", "t", hostkey.AlgorithmEd25519, "key algorithm")
	return cmd
}

func generateKey(algorithm string) (hostkey.Signer, error) {
	if algorithm == hostkey.AlgorithmEd25519 {
		return hostkey.GenerateEd25519(rand.Reader)
	}
	for _, name := range hostkey.ECDSAAlgorithms() {
		if algorithm == name {
			return hostkey.GenerateECDSA(rand.Reader, algorithm)
		}
	}
	return nil, fmt.Errorf("unknown key algorithm %q", algorithm)
}
