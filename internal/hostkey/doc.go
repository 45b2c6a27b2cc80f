// Package hostkey implements the long-lived keys a server
// authenticates itself with: ssh-ed25519 and the ecdsa-sha2-nistp
// family.
//
// A PublicKey knows its wire blob and verifies signature blobs over
// arbitrary data; a Signer additionally produces them. Set is a small
// keyring resolving keys by algorithm name for the handshake. Private
// keys marshal to a compact binary form for encrypted storage and
// public keys to the usual one-line authorized-key text form.
package hostkey
