package kex

import (
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"skiff/internal/util/memzero"
)

type x25519Curve struct{}

func (x25519Curve) Name() string   { return "curve25519" }
func (x25519Curve) FieldBits() int { return 255 }

func (x25519Curve) GenerateEphemeral(rand io.Reader) (EphemeralKey, error) {
	e := &x25519Ephemeral{}
	if _, err := io.ReadFull(rand, e.scalar[:]); err != nil {
		return nil, fmt.Errorf("%w: drawing curve25519 scalar: %v", ErrCryptoFailure, err)
	}
	// Clamp per RFC 7748.
	e.scalar[0] &= 248
	e.scalar[31] &= 127
	e.scalar[31] |= 64

	pub, err := curve25519.X25519(e.scalar[:], curve25519.Basepoint)
	if err != nil {
		memzero.Zero(e.scalar[:])
		return nil, fmt.Errorf("%w: curve25519 base multiply: %v", ErrCryptoFailure, err)
	}
	copy(e.public[:], pub)
	return e, nil
}

func (x25519Curve) ValidatePeerPoint(encoded []byte) (PeerPoint, error) {
	if len(encoded) != curve25519.PointSize {
		return nil, fmt.Errorf("%w: curve25519 point must be %d bytes, got %d",
			ErrInvalidPeerKey, curve25519.PointSize, len(encoded))
	}
	if allZero(encoded) {
		return nil, fmt.Errorf("%w: curve25519 point is the identity", ErrInvalidPeerKey)
	}
	p := &x25519Point{}
	copy(p.b[:], encoded)
	return p, nil
}

type x25519Point struct {
	b [curve25519.PointSize]byte
}

func (p *x25519Point) Encoded() []byte { return p.b[:] }

type x25519Ephemeral struct {
	scalar    [curve25519.ScalarSize]byte
	public    [curve25519.PointSize]byte
	destroyed bool
}

func (e *x25519Ephemeral) PublicEncoded() []byte { return e.public[:] }

func (e *x25519Ephemeral) SharedSecret(peer PeerPoint) (*Secret, error) {
	if e.destroyed {
		return nil, fmt.Errorf("%w: ephemeral key already destroyed", ErrCryptoFailure)
	}
	pp, ok := peer.(*x25519Point)
	if !ok {
		return nil, fmt.Errorf("%w: peer point is not a curve25519 point", ErrInvalidPeerKey)
	}
	k, err := curve25519.X25519(e.scalar[:], pp.b[:])
	if err != nil || allZero(k) {
		// Only a low-order peer point drives the product to zero.
		memzero.Zero(k)
		return nil, fmt.Errorf("%w: curve25519 shared secret is the all-zero value", ErrInvalidPeerKey)
	}
	return newSecret(k), nil
}

func (e *x25519Ephemeral) Destroy() {
	memzero.Zero(e.scalar[:])
	e.destroyed = true
}

var (
	_ Curve        = x25519Curve{}
	_ EphemeralKey = (*x25519Ephemeral)(nil)
	_ PeerPoint    = (*x25519Point)(nil)
)
