package kex

import (
	"crypto"
	"encoding/binary"
	"fmt"

	"skiff/internal/wire"
)

// Transcript collects the eight inputs bound into the exchange hash.
// Version strings carry no line terminator; KexInit payloads and
// ephemeral keys are the exact bytes that crossed the wire.
type Transcript struct {
	ClientVersion   []byte
	ServerVersion   []byte
	ClientKexInit   []byte
	ServerKexInit   []byte
	HostKeyBlob     []byte
	ClientEphemeral []byte
	ServerEphemeral []byte
}

// Hash digests the transcript and secret with h. Every field is
// length-prefixed exactly as on the wire and the secret goes in as a
// canonical mpint, so both peers reproduce identical input bytes.
func (t *Transcript) Hash(h crypto.Hash, secret *Secret) ([]byte, error) {
	fields := []struct {
		name string
		v    []byte
	}{
		{"client version", t.ClientVersion},
		{"server version", t.ServerVersion},
		{"client kexinit", t.ClientKexInit},
		{"server kexinit", t.ServerKexInit},
		{"host key blob", t.HostKeyBlob},
		{"client ephemeral", t.ClientEphemeral},
		{"server ephemeral", t.ServerEphemeral},
	}

	d := h.New()
	var prefix [4]byte
	for _, f := range fields {
		if len(f.v) == 0 {
			return nil, fmt.Errorf("%w: transcript %s is empty", ErrCryptoFailure, f.name)
		}
		binary.BigEndian.PutUint32(prefix[:], uint32(len(f.v)))
		d.Write(prefix[:])
		d.Write(f.v)
	}
	if secret == nil || len(secret.Bytes()) == 0 {
		return nil, fmt.Errorf("%w: transcript shared secret is empty", ErrCryptoFailure)
	}
	d.Write(wire.Mpint(secret.Bytes()))
	return d.Sum(nil), nil
}
