package kex

import (
	"crypto/ecdh"
	"fmt"
	"io"

	"skiff/internal/util/memzero"
)

type nistCurve struct {
	name  string
	bits  int
	curve ecdh.Curve
}

func nistP256() Curve { return &nistCurve{name: "nistp256", bits: 256, curve: ecdh.P256()} }
func nistP384() Curve { return &nistCurve{name: "nistp384", bits: 384, curve: ecdh.P384()} }
func nistP521() Curve { return &nistCurve{name: "nistp521", bits: 521, curve: ecdh.P521()} }

func (c *nistCurve) Name() string   { return c.name }
func (c *nistCurve) FieldBits() int { return c.bits }

// pointLen is the uncompressed encoding size: 0x04 plus two
// field-width coordinates.
func (c *nistCurve) pointLen() int { return 1 + 2*((c.bits+7)/8) }

func (c *nistCurve) GenerateEphemeral(rand io.Reader) (EphemeralKey, error) {
	priv, err := c.curve.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("%w: generating %s ephemeral: %v", ErrCryptoFailure, c.name, err)
	}
	return &nistEphemeral{curve: c, priv: priv}, nil
}

func (c *nistCurve) ValidatePeerPoint(encoded []byte) (PeerPoint, error) {
	if len(encoded) != c.pointLen() || encoded[0] != 4 {
		return nil, fmt.Errorf("%w: %s point must be a %d-byte uncompressed encoding",
			ErrInvalidPeerKey, c.name, c.pointLen())
	}
	// NewPublicKey rejects the identity, off-curve points and
	// out-of-range coordinates.
	pub, err := c.curve.NewPublicKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPeerKey, c.name, err)
	}
	return &nistPoint{pub: pub}, nil
}

type nistPoint struct {
	pub *ecdh.PublicKey
}

func (p *nistPoint) Encoded() []byte { return p.pub.Bytes() }

type nistEphemeral struct {
	curve *nistCurve
	priv  *ecdh.PrivateKey
}

func (e *nistEphemeral) PublicEncoded() []byte { return e.priv.PublicKey().Bytes() }

func (e *nistEphemeral) SharedSecret(peer PeerPoint) (*Secret, error) {
	if e.priv == nil {
		return nil, fmt.Errorf("%w: ephemeral key already destroyed", ErrCryptoFailure)
	}
	pp, ok := peer.(*nistPoint)
	if !ok {
		return nil, fmt.Errorf("%w: peer point is not a %s point", ErrInvalidPeerKey, e.curve.name)
	}
	k, err := e.priv.ECDH(pp.pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %s agreement: %v", ErrCryptoFailure, e.curve.name, err)
	}
	// With validated inputs on a prime-order group the product cannot
	// be the identity; treat it as a primitive fault if it happens.
	if allZero(k) {
		memzero.Zero(k)
		return nil, fmt.Errorf("%w: %s agreement produced the identity", ErrCryptoFailure, e.curve.name)
	}
	return newSecret(k), nil
}

// Destroy drops the only reference to the scalar. crypto/ecdh does not
// expose the backing bytes, so there is nothing further to wipe here.
func (e *nistEphemeral) Destroy() { e.priv = nil }

var (
	_ Curve        = (*nistCurve)(nil)
	_ EphemeralKey = (*nistEphemeral)(nil)
	_ PeerPoint    = (*nistPoint)(nil)
)
