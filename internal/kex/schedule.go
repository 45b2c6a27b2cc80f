package kex

import (
	"crypto"

	"skiff/internal/util/memzero"
	"skiff/internal/wire"
)

// Key derivation tags. Each derived key hashes a distinct single-letter
// tag so the six outputs never collide even for identical lengths.
const (
	tagIVClientToServer  = 'A'
	tagIVServerToClient  = 'B'
	tagKeyClientToServer = 'C'
	tagKeyServerToClient = 'D'
	tagMACClientToServer = 'E'
	tagMACServerToClient = 'F'
)

// deriveKey expands the shared secret into one key of length need.
// The first block hashes mpint(K) || H || tag || session_id; follow-up
// blocks chain as mpint(K) || H || output-so-far until enough material
// exists, then the output is cut to exactly need bytes.
func deriveKey(h crypto.Hash, kMpint, exchangeHash, sessionID []byte, tag byte, need int) []byte {
	if need == 0 {
		return nil
	}
	d := h.New()
	d.Write(kMpint)
	d.Write(exchangeHash)
	d.Write([]byte{tag})
	d.Write(sessionID)
	out := d.Sum(nil)

	for len(out) < need {
		d = h.New()
		d.Write(kMpint)
		d.Write(exchangeHash)
		d.Write(out)
		out = d.Sum(out)
	}
	tail := out[need:]
	memzero.Zero(tail)
	return out[:need]
}

// DeriveKeys expands secret into the six directional keys sized by the
// two per-direction suites. sessionID is the pinned session identifier,
// which equals exchangeHash only on a connection's first exchange.
func DeriveKeys(h crypto.Hash, secret *Secret, exchangeHash, sessionID []byte, toServer, toClient Suite) *KeyMaterial {
	kMpint := wire.Mpint(secret.Bytes())
	defer memzero.Zero(kMpint)

	km := &KeyMaterial{
		IVClientToServer:  deriveKey(h, kMpint, exchangeHash, sessionID, tagIVClientToServer, toServer.IVLen),
		IVServerToClient:  deriveKey(h, kMpint, exchangeHash, sessionID, tagIVServerToClient, toClient.IVLen),
		KeyClientToServer: deriveKey(h, kMpint, exchangeHash, sessionID, tagKeyClientToServer, toServer.KeyLen),
		KeyServerToClient: deriveKey(h, kMpint, exchangeHash, sessionID, tagKeyServerToClient, toClient.KeyLen),
		MACClientToServer: deriveKey(h, kMpint, exchangeHash, sessionID, tagMACClientToServer, toServer.MACLen),
		MACServerToClient: deriveKey(h, kMpint, exchangeHash, sessionID, tagMACServerToClient, toClient.MACLen),
	}
	return km
}
