package kex

import (
	"crypto"
	"fmt"
	"io"

	_ "crypto/sha256"
	_ "crypto/sha512"
)

// Curve is one elliptic-curve group usable for the ephemeral agreement.
// Implementations validate peer encodings before any arithmetic sees
// them.
type Curve interface {
	// Name is the short group name, e.g. "nistp256" or "curve25519".
	Name() string

	// FieldBits is the size of the underlying field. It alone decides
	// the digest paired with the group.
	FieldBits() int

	// GenerateEphemeral draws a fresh key pair from rand.
	GenerateEphemeral(rand io.Reader) (EphemeralKey, error)

	// ValidatePeerPoint parses and validates a peer public-key
	// encoding. Off-curve points, the identity, out-of-range
	// coordinates and wrong-length encodings are all rejected here.
	ValidatePeerPoint(encoded []byte) (PeerPoint, error)
}

// EphemeralKey is one side's short-lived key pair. It is destroyed as
// soon as the shared secret exists.
type EphemeralKey interface {
	// PublicEncoded is the wire encoding of the public key.
	PublicEncoded() []byte

	// SharedSecret runs the agreement against a validated peer point.
	SharedSecret(peer PeerPoint) (*Secret, error)

	// Destroy scrubs the private scalar. The key is unusable after.
	Destroy()
}

// PeerPoint is a peer public key that already passed validation.
type PeerPoint interface {
	Encoded() []byte
}

// Algorithm pairs a named key-exchange method with its curve and the
// digest used for the exchange hash and key derivation.
type Algorithm struct {
	Name  string
	Curve Curve
	Hash  crypto.Hash
}

// hashForField picks the digest tier for a field size: 256-bit fields
// and smaller use SHA-256, up to 384 bits SHA-384, anything larger
// SHA-512.
func hashForField(bits int) crypto.Hash {
	switch {
	case bits <= 256:
		return crypto.SHA256
	case bits <= 384:
		return crypto.SHA384
	default:
		return crypto.SHA512
	}
}

func newAlgorithm(name string, curve Curve) *Algorithm {
	return &Algorithm{Name: name, Curve: curve, Hash: hashForField(curve.FieldBits())}
}

// preferredAlgorithms is the proposal order for KexInit.
var preferredAlgorithms = []string{
	"curve25519-sha256",
	"curve25519-sha256@libssh.org",
	"ecdh-sha2-nistp256",
	"ecdh-sha2-nistp384",
	"ecdh-sha2-nistp521",
}

var algorithms = map[string]*Algorithm{
	"curve25519-sha256":            newAlgorithm("curve25519-sha256", x25519Curve{}),
	"curve25519-sha256@libssh.org": newAlgorithm("curve25519-sha256@libssh.org", x25519Curve{}),
	"ecdh-sha2-nistp256":           newAlgorithm("ecdh-sha2-nistp256", nistP256()),
	"ecdh-sha2-nistp384":           newAlgorithm("ecdh-sha2-nistp384", nistP384()),
	"ecdh-sha2-nistp521":           newAlgorithm("ecdh-sha2-nistp521", nistP521()),
}

// Lookup resolves a negotiated key-exchange name.
func Lookup(name string) (*Algorithm, error) {
	alg, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return alg, nil
}

// Algorithms lists the registered method names in preference order.
func Algorithms() []string {
	out := make([]string, len(preferredAlgorithms))
	copy(out, preferredAlgorithms)
	return out
}
