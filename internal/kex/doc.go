// Package kex implements the ephemeral elliptic-curve key exchange
// that establishes a skiff transport session.
//
// # Overview
//
// Both peers contribute a fresh ephemeral key on a negotiated curve.
// The shared secret, together with a transcript of the negotiation
// (version strings, both KexInit payloads, the server host key and
// both ephemeral keys), is digested into the exchange hash H. The
// server signs H with its long-lived host key; the client verifies
// that signature and the key's trust. Both sides then expand the
// secret into six directional keys via tagged, chained digests.
//
// The first H of a connection is pinned as the session id. Later
// exchanges on the same connection (rekeys) produce new keys but keep
// the pinned id, so anything bound to the session survives rekeying.
//
// # Flow
//
// Server:
//  1. Begin and wait for the client's ephemeral key.
//  2. Validate the peer point. Anything not a proper point on the
//     negotiated curve is rejected before arithmetic.
//  3. Resolve the host key, generate the server ephemeral, compute
//     the shared secret and the exchange hash.
//  4. Sign H, send the reply, derive keys, hand them to OnComplete.
//
// Client: Begin sends the ephemeral key; the reply is checked for
// host-key trust, point validity and signature before keys derive.
//
// # Curves and digests
//
// The registry maps method names to curves. The digest is a pure
// function of the curve's field size: up to 256 bits SHA-256, up to
// 384 SHA-384, beyond that SHA-512.
//
// # Errors
//
// Failures classify into three reactions (SeverityOf): negotiation
// and peer-input problems disconnect cleanly, authentication problems
// kill the connection, primitive failures are process-fatal. A failed
// exchange scrubs its secret material before reporting.
//
// Handshake and Session are confined to their connection's goroutine;
// nothing in this package is shared across connections.
package kex
