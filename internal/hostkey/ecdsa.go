package hostkey

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"io"
	"math/big"

	_ "crypto/sha256"
	_ "crypto/sha512"

	"skiff/internal/wire"
)

// ecdsaParams ties one ecdsa-sha2 algorithm name to its curve, the
// digest that signs under it and the fixed coordinate width.
type ecdsaParams struct {
	name      string
	curveName string
	curve     elliptic.Curve
	ecdhCurve ecdh.Curve
	hash      crypto.Hash
	byteLen   int
}

var ecdsaAlgorithms = map[string]*ecdsaParams{
	"ecdsa-sha2-nistp256": {
		name: "ecdsa-sha2-nistp256", curveName: "nistp256",
		curve: elliptic.P256(), ecdhCurve: ecdh.P256(), hash: crypto.SHA256, byteLen: 32,
	},
	"ecdsa-sha2-nistp384": {
		name: "ecdsa-sha2-nistp384", curveName: "nistp384",
		curve: elliptic.P384(), ecdhCurve: ecdh.P384(), hash: crypto.SHA384, byteLen: 48,
	},
	"ecdsa-sha2-nistp521": {
		name: "ecdsa-sha2-nistp521", curveName: "nistp521",
		curve: elliptic.P521(), ecdhCurve: ecdh.P521(), hash: crypto.SHA512, byteLen: 66,
	},
}

// ECDSAAlgorithms lists the supported ecdsa-sha2 names.
func ECDSAAlgorithms() []string {
	return []string{"ecdsa-sha2-nistp256", "ecdsa-sha2-nistp384", "ecdsa-sha2-nistp521"}
}

// ECDSAPublic is the verify-only half of an ecdsa-sha2 host key.
type ECDSAPublic struct {
	params *ecdsaParams
	key    *ecdsa.PublicKey
}

func (p *ECDSAPublic) Algorithm() string { return p.params.name }

func (p *ECDSAPublic) Blob() []byte {
	pt := marshalPoint(p.params, p.key.X, p.key.Y)
	b := wire.NewBuilder(len(pt) + 2*len(p.params.name) + 16)
	b.String([]byte(p.params.name))
	b.String([]byte(p.params.curveName))
	b.String(pt)
	return b.Bytes()
}

func (p *ECDSAPublic) Verify(data, sig []byte) error {
	inner, err := openSignature(p.params.name, sig)
	if err != nil {
		return err
	}
	ir := wire.NewReader(inner)
	rBytes, err := ir.String()
	if err != nil {
		return fmt.Errorf("%w: reading r: %v", ErrBadSignature, err)
	}
	sBytes, err := ir.String()
	if err != nil {
		return fmt.Errorf("%w: reading s: %v", ErrBadSignature, err)
	}
	if err := ir.End(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	digest := hashSum(p.params.hash, data)
	r := new(big.Int).SetBytes(rBytes)
	s := new(big.Int).SetBytes(sBytes)
	if !ecdsa.Verify(p.key, digest, r, s) {
		return ErrBadSignature
	}
	return nil
}

// ECDSAKey is a full ecdsa-sha2 host key pair.
type ECDSAKey struct {
	ECDSAPublic
	priv *ecdsa.PrivateKey
}

// GenerateECDSA draws a fresh key for the named ecdsa-sha2 algorithm.
func GenerateECDSA(rand io.Reader, algorithm string) (*ECDSAKey, error) {
	p, ok := ecdsaAlgorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	priv, err := ecdsa.GenerateKey(p.curve, rand)
	if err != nil {
		return nil, fmt.Errorf("hostkey: generating %s key: %w", algorithm, err)
	}
	return &ECDSAKey{
		ECDSAPublic: ECDSAPublic{params: p, key: &priv.PublicKey},
		priv:        priv,
	}, nil
}

func (k *ECDSAKey) Sign(rand io.Reader, data []byte) ([]byte, error) {
	digest := hashSum(k.params.hash, data)
	r, s, err := ecdsa.Sign(rand, k.priv, digest)
	if err != nil {
		return nil, fmt.Errorf("hostkey: %s sign: %w", k.params.name, err)
	}
	inner := wire.NewBuilder(2*k.params.byteLen + 16)
	inner.Mpint(r.Bytes())
	inner.Mpint(s.Bytes())
	return sealSignature(k.params.name, inner.Bytes()), nil
}

func (k *ECDSAKey) marshalPrivate() []byte {
	d := make([]byte, k.params.byteLen)
	k.priv.D.FillBytes(d)
	b := wire.NewBuilder(len(d) + len(k.params.name) + 8)
	b.String([]byte(k.params.name))
	b.String(d)
	return b.Bytes()
}

func parseECDSA(p *ecdsaParams, r *wire.Reader) (PublicKey, error) {
	curveName, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("hostkey: reading curve name: %w", err)
	}
	if string(curveName) != p.curveName {
		return nil, fmt.Errorf("hostkey: %s blob names curve %q", p.name, curveName)
	}
	pt, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("hostkey: reading %s point: %w", p.name, err)
	}
	if err := r.End(); err != nil {
		return nil, fmt.Errorf("hostkey: %s blob: %w", p.name, err)
	}
	pub, err := parsePoint(p, pt)
	if err != nil {
		return nil, err
	}
	return &ECDSAPublic{params: p, key: pub}, nil
}

func parseECDSAPrivate(p *ecdsaParams, r *wire.Reader) (Signer, error) {
	d, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("hostkey: reading %s scalar: %w", p.name, err)
	}
	if err := r.End(); err != nil {
		return nil, fmt.Errorf("hostkey: %s private blob: %w", p.name, err)
	}
	// Route the scalar through crypto/ecdh: it validates the range and
	// derives the public point without deprecated curve arithmetic.
	ek, err := p.ecdhCurve.NewPrivateKey(d)
	if err != nil {
		return nil, fmt.Errorf("hostkey: %s scalar: %w", p.name, err)
	}
	pub, err := parsePoint(p, ek.PublicKey().Bytes())
	if err != nil {
		return nil, err
	}
	priv := &ecdsa.PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).SetBytes(d),
	}
	return &ECDSAKey{ECDSAPublic: ECDSAPublic{params: p, key: pub}, priv: priv}, nil
}

// parsePoint validates an uncompressed encoding via crypto/ecdh, then
// splits it into coordinates for crypto/ecdsa.
func parsePoint(p *ecdsaParams, enc []byte) (*ecdsa.PublicKey, error) {
	if _, err := p.ecdhCurve.NewPublicKey(enc); err != nil {
		return nil, fmt.Errorf("hostkey: %s point: %w", p.name, err)
	}
	x := new(big.Int).SetBytes(enc[1 : 1+p.byteLen])
	y := new(big.Int).SetBytes(enc[1+p.byteLen:])
	return &ecdsa.PublicKey{Curve: p.curve, X: x, Y: y}, nil
}

func marshalPoint(p *ecdsaParams, x, y *big.Int) []byte {
	out := make([]byte, 1+2*p.byteLen)
	out[0] = 4
	x.FillBytes(out[1 : 1+p.byteLen])
	y.FillBytes(out[1+p.byteLen:])
	return out
}

func hashSum(h crypto.Hash, data []byte) []byte {
	d := h.New()
	d.Write(data)
	return d.Sum(nil)
}

var (
	_ PublicKey = (*ECDSAPublic)(nil)
	_ Signer    = (*ECDSAKey)(nil)
)
