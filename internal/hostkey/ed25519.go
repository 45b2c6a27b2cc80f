package hostkey

import (
	"crypto/ed25519"
	"fmt"
	"io"

	"skiff/internal/wire"
)

// AlgorithmEd25519 is the wire name of Ed25519 host keys.
const AlgorithmEd25519 = "ssh-ed25519"

// Ed25519Public is the verify-only half of an Ed25519 host key.
type Ed25519Public struct {
	pub ed25519.PublicKey
}

func (p *Ed25519Public) Algorithm() string { return AlgorithmEd25519 }

func (p *Ed25519Public) Blob() []byte {
	b := wire.NewBuilder(ed25519.PublicKeySize + 16)
	b.String([]byte(AlgorithmEd25519))
	b.String(p.pub)
	return b.Bytes()
}

func (p *Ed25519Public) Verify(data, sig []byte) error {
	raw, err := openSignature(AlgorithmEd25519, sig)
	if err != nil {
		return err
	}
	if len(raw) != ed25519.SignatureSize {
		return fmt.Errorf("%w: %d-byte ed25519 signature", ErrBadSignature, len(raw))
	}
	if !ed25519.Verify(p.pub, data, raw) {
		return ErrBadSignature
	}
	return nil
}

// Ed25519Key is a full Ed25519 host key pair.
type Ed25519Key struct {
	Ed25519Public
	priv ed25519.PrivateKey
}

// GenerateEd25519 draws a fresh Ed25519 host key from rand.
func GenerateEd25519(rand io.Reader) (*Ed25519Key, error) {
	pub, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("hostkey: generating ed25519 key: %w", err)
	}
	return &Ed25519Key{Ed25519Public: Ed25519Public{pub: pub}, priv: priv}, nil
}

func (k *Ed25519Key) Sign(_ io.Reader, data []byte) ([]byte, error) {
	return sealSignature(AlgorithmEd25519, ed25519.Sign(k.priv, data)), nil
}

func (k *Ed25519Key) marshalPrivate() []byte {
	b := wire.NewBuilder(ed25519.SeedSize + 16)
	b.String([]byte(AlgorithmEd25519))
	b.String(k.priv.Seed())
	return b.Bytes()
}

func parseEd25519(r *wire.Reader) (PublicKey, error) {
	raw, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("hostkey: reading ed25519 key: %w", err)
	}
	if err := r.End(); err != nil {
		return nil, fmt.Errorf("hostkey: ed25519 blob: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("hostkey: %d-byte ed25519 public key", len(raw))
	}
	return &Ed25519Public{pub: ed25519.PublicKey(append([]byte(nil), raw...))}, nil
}

func parseEd25519Private(r *wire.Reader) (Signer, error) {
	seed, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("hostkey: reading ed25519 seed: %w", err)
	}
	if err := r.End(); err != nil {
		return nil, fmt.Errorf("hostkey: ed25519 private blob: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("hostkey: %d-byte ed25519 seed", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Key{
		Ed25519Public: Ed25519Public{pub: priv.Public().(ed25519.PublicKey)},
		priv:          priv,
	}, nil
}

// sealSignature wraps a raw signature into the wire blob form.
func sealSignature(algorithm string, raw []byte) []byte {
	b := wire.NewBuilder(len(raw) + len(algorithm) + 8)
	b.String([]byte(algorithm))
	b.String(raw)
	return b.Bytes()
}

// openSignature unwraps a signature blob, checking its algorithm.
func openSignature(algorithm string, sig []byte) ([]byte, error) {
	r := wire.NewReader(sig)
	name, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("%w: reading signature algorithm: %v", ErrBadSignature, err)
	}
	if string(name) != algorithm {
		return nil, fmt.Errorf("%w: signature is %q, key is %q", ErrBadSignature, name, algorithm)
	}
	raw, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("%w: reading signature body: %v", ErrBadSignature, err)
	}
	if err := r.End(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return raw, nil
}

var (
	_ PublicKey = (*Ed25519Public)(nil)
	_ Signer    = (*Ed25519Key)(nil)
)
