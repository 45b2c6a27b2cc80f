package transport

import (
	"fmt"
	"io"

	"skiff/internal/hostkey"
	"skiff/internal/kex"
	"skiff/internal/wire"
)

// Preferences are the local algorithm preference lists, most preferred
// first. Zero-value lists take the built-in defaults; a server should
// restrict HostKeyAlgorithms to the key types it actually holds.
type Preferences struct {
	KexAlgorithms     []string
	HostKeyAlgorithms []string
	Ciphers           []string
	MACs              []string
}

func defaultHostKeyAlgorithms() []string {
	return append([]string{hostkey.AlgorithmEd25519}, hostkey.ECDSAAlgorithms()...)
}

func (p Preferences) withDefaults() Preferences {
	if len(p.KexAlgorithms) == 0 {
		p.KexAlgorithms = kex.Algorithms()
	}
	if len(p.HostKeyAlgorithms) == 0 {
		p.HostKeyAlgorithms = defaultHostKeyAlgorithms()
	}
	if len(p.Ciphers) == 0 {
		p.Ciphers = kex.Ciphers()
	}
	if len(p.MACs) == 0 {
		p.MACs = kex.MACs()
	}
	return p
}

// newKexInit builds a negotiation message from the preference lists
// with a fresh cookie. Compression is always the none algorithm.
func newKexInit(rand io.Reader, p Preferences) (*wire.KexInit, error) {
	m := &wire.KexInit{
		KexAlgorithms:           p.KexAlgorithms,
		HostKeyAlgorithms:       p.HostKeyAlgorithms,
		CiphersClientToServer:   p.Ciphers,
		CiphersServerToClient:   p.Ciphers,
		MACsClientToServer:      p.MACs,
		MACsServerToClient:      p.MACs,
		CompressionClientServer: []string{"none"},
		CompressionServerClient: []string{"none"},
	}
	if _, err := io.ReadFull(rand, m.Cookie[:]); err != nil {
		return nil, fmt.Errorf("%w: drawing kexinit cookie: %v", kex.ErrCryptoFailure, err)
	}
	return m, nil
}

// Negotiated carries the agreed algorithm names for one exchange.
type Negotiated struct {
	Kex                  string
	HostKey              string
	CipherClientToServer string
	CipherServerToClient string
	MACClientToServer    string
	MACServerToClient    string
}

// negotiate applies the choose rule to each list pair: the first of the
// client's preferences that the server also names wins. Both sides run
// this on the same two messages and land on the same names.
func negotiate(client, server *wire.KexInit) (Negotiated, error) {
	var n Negotiated
	var err error
	if n.Kex, err = pick("key exchange", client.KexAlgorithms, server.KexAlgorithms); err != nil {
		return n, err
	}
	if n.HostKey, err = pick("host key", client.HostKeyAlgorithms, server.HostKeyAlgorithms); err != nil {
		return n, err
	}
	if n.CipherClientToServer, err = pick("cipher", client.CiphersClientToServer, server.CiphersClientToServer); err != nil {
		return n, err
	}
	if n.CipherServerToClient, err = pick("cipher", client.CiphersServerToClient, server.CiphersServerToClient); err != nil {
		return n, err
	}
	if n.MACClientToServer, err = pick("mac", client.MACsClientToServer, server.MACsClientToServer); err != nil {
		return n, err
	}
	if n.MACServerToClient, err = pick("mac", client.MACsServerToClient, server.MACsServerToClient); err != nil {
		return n, err
	}
	if _, err = pick("compression", client.CompressionClientServer, server.CompressionClientServer); err != nil {
		return n, err
	}
	if _, err = pick("compression", client.CompressionServerClient, server.CompressionServerClient); err != nil {
		return n, err
	}
	return n, nil
}

func pick(kind string, client, server []string) (string, error) {
	for _, c := range client {
		for _, s := range server {
			if c == s {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no common %s algorithm", kex.ErrUnsupportedAlgorithm, kind)
}

// wrongGuess reports whether a peer that optimistically sent its first
// exchange packet alongside KEXINIT guessed the negotiation outcome
// wrong, in which case that packet must be discarded.
func wrongGuess(client, server *wire.KexInit, n Negotiated) bool {
	if len(client.KexAlgorithms) == 0 || len(server.KexAlgorithms) == 0 {
		return true
	}
	if len(client.HostKeyAlgorithms) == 0 || len(server.HostKeyAlgorithms) == 0 {
		return true
	}
	return client.KexAlgorithms[0] != n.Kex ||
		server.KexAlgorithms[0] != n.Kex ||
		client.HostKeyAlgorithms[0] != n.HostKey ||
		server.HostKeyAlgorithms[0] != n.HostKey
}
