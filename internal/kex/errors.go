package kex

import (
	"errors"

	"skiff/internal/wire"
)

// Sentinel errors for the failure classes of a key exchange. Callers
// classify wrapped errors with errors.Is and map them to an action via
// SeverityOf and DisconnectReason.
var (
	// ErrUnsupportedAlgorithm is returned for an algorithm name the
	// registry does not carry, or a cipher or MAC with no known key
	// sizes.
	ErrUnsupportedAlgorithm = errors.New("kex: unsupported algorithm")

	// ErrMalformedMessage is returned for a payload that is truncated,
	// oversized or carries bytes past its last field.
	ErrMalformedMessage = errors.New("kex: malformed message")

	// ErrUnexpectedMessage is returned for a message the current state
	// does not accept.
	ErrUnexpectedMessage = errors.New("kex: unexpected message")

	// ErrInvalidPeerKey is returned when the peer's ephemeral public
	// key fails validation, before any arithmetic uses it.
	ErrInvalidPeerKey = errors.New("kex: invalid peer public key")

	// ErrCryptoFailure is returned when a primitive itself fails:
	// drained randomness, a scalar multiplication fault, a hash that
	// cannot be assembled. The environment is unsafe and the failure
	// is not retried.
	ErrCryptoFailure = errors.New("kex: cryptographic failure")

	// ErrHostKeyUnavailable is returned when the configured host key
	// cannot be loaded. The handshake aborts before any cryptography.
	ErrHostKeyUnavailable = errors.New("kex: host key unavailable")

	// ErrSigningFailed is returned when the host key signer refuses or
	// fails to sign the exchange hash.
	ErrSigningFailed = errors.New("kex: host key signing failed")

	// ErrSignatureRejected is returned when the server's signature
	// over the exchange hash does not verify.
	ErrSignatureRejected = errors.New("kex: host key signature rejected")

	// ErrHostKeyUntrusted is returned when the presented host key is
	// rejected by the trust callback.
	ErrHostKeyUntrusted = errors.New("kex: host key not trusted")
)

// Severity tells the transport how to react to a failed handshake.
type Severity int

const (
	// SeverityDisconnect: notify the peer with a Disconnect message
	// and drop the connection cleanly.
	SeverityDisconnect Severity = iota
	// SeverityConnectionFatal: drop the connection without ceremony.
	SeverityConnectionFatal
	// SeverityProcessFatal: the process must stop accepting work.
	SeverityProcessFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityDisconnect:
		return "disconnect"
	case SeverityConnectionFatal:
		return "connection-fatal"
	case SeverityProcessFatal:
		return "process-fatal"
	default:
		return "unknown"
	}
}

// SeverityOf classifies err. Unknown errors degrade to connection-fatal.
func SeverityOf(err error) Severity {
	switch {
	case errors.Is(err, ErrCryptoFailure):
		return SeverityProcessFatal
	case errors.Is(err, ErrUnsupportedAlgorithm),
		errors.Is(err, ErrMalformedMessage),
		errors.Is(err, ErrUnexpectedMessage),
		errors.Is(err, ErrInvalidPeerKey):
		return SeverityDisconnect
	default:
		return SeverityConnectionFatal
	}
}

// DisconnectReason maps a disconnect-class error to the wire reason
// code sent to the peer. Failed negotiation names the key exchange;
// everything else is a protocol error.
func DisconnectReason(err error) uint32 {
	if errors.Is(err, ErrUnsupportedAlgorithm) {
		return wire.DisconnectKeyExchangeFailed
	}
	return wire.DisconnectProtocolError
}
