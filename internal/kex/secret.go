package kex

import "skiff/internal/util/memzero"

// Secret owns the raw shared secret for the short stretch between the
// agreement and key derivation. Wipe scrubs it; every handshake path,
// success or failure, ends in a Wipe.
type Secret struct {
	k []byte
}

func newSecret(k []byte) *Secret { return &Secret{k: k} }

// Bytes exposes the secret for hashing. The slice stays valid only
// until Wipe.
func (s *Secret) Bytes() []byte { return s.k }

// Wipe zeroes the secret. Safe to call more than once.
func (s *Secret) Wipe() {
	if s == nil {
		return
	}
	memzero.Zero(s.k)
	s.k = nil
}

// KeyMaterial is the six derived transport keys, client-to-server and
// server-to-client. Whoever installs them into a record layer owns the
// buffers and calls Wipe when they are no longer needed.
type KeyMaterial struct {
	IVClientToServer  []byte
	IVServerToClient  []byte
	KeyClientToServer []byte
	KeyServerToClient []byte
	MACClientToServer []byte
	MACServerToClient []byte
}

// Wipe scrubs all six buffers.
func (km *KeyMaterial) Wipe() {
	if km == nil {
		return
	}
	memzero.ZeroAll(
		km.IVClientToServer,
		km.IVServerToClient,
		km.KeyClientToServer,
		km.KeyServerToClient,
		km.MACClientToServer,
		km.MACServerToClient,
	)
}

func allZero(b []byte) bool {
	var v byte
	for _, x := range b {
		v |= x
	}
	return v == 0
}
