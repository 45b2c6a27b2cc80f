package hostkey

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"skiff/internal/wire"
)

var (
	// ErrUnknownAlgorithm is returned for key or signature blobs whose
	// algorithm name is not implemented.
	ErrUnknownAlgorithm = errors.New("hostkey: unknown algorithm")

	// ErrBadSignature is returned when a signature does not verify.
	ErrBadSignature = errors.New("hostkey: signature does not verify")

	// ErrNoKey is returned by Set lookups for algorithms it has no key
	// for.
	ErrNoKey = errors.New("hostkey: no key for algorithm")
)

// PublicKey is one host public key.
type PublicKey interface {
	// Algorithm is the wire name, e.g. "ssh-ed25519".
	Algorithm() string

	// Blob is the wire encoding of the key.
	Blob() []byte

	// Verify checks a signature blob over data.
	Verify(data, sig []byte) error
}

// Signer is a host key pair. Sign produces a signature blob over data;
// the handshake treats it as an opaque synchronous capability.
type Signer interface {
	PublicKey
	Sign(rand io.Reader, data []byte) ([]byte, error)
}

// ParsePublicKey decodes a wire key blob into the matching key type.
func ParsePublicKey(blob []byte) (PublicKey, error) {
	r := wire.NewReader(blob)
	name, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("hostkey: reading algorithm name: %w", err)
	}
	switch {
	case string(name) == AlgorithmEd25519:
		return parseEd25519(r)
	case ecdsaAlgorithms[string(name)] != nil:
		return parseECDSA(ecdsaAlgorithms[string(name)], r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// VerifyBlob parses blob and checks sig over data with it. This is the
// shape the key-exchange layer wants for its signature callback.
func VerifyBlob(blob, data, sig []byte) error {
	pub, err := ParsePublicKey(blob)
	if err != nil {
		return err
	}
	return pub.Verify(data, sig)
}

// Fingerprint renders the usual display form of a key: SHA256: plus
// the unpadded base64 of the blob digest.
func Fingerprint(pub PublicKey) string {
	sum := sha256.Sum256(pub.Blob())
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:])
}

// MarshalPrivate encodes a Signer's private half for storage. The
// result is sensitive and belongs inside an encrypted envelope.
func MarshalPrivate(s Signer) ([]byte, error) {
	switch k := s.(type) {
	case *Ed25519Key:
		return k.marshalPrivate(), nil
	case *ECDSAKey:
		return k.marshalPrivate(), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAlgorithm, s)
	}
}

// ParsePrivate decodes a stored private key back into a Signer.
func ParsePrivate(b []byte) (Signer, error) {
	r := wire.NewReader(b)
	name, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("hostkey: reading algorithm name: %w", err)
	}
	switch {
	case string(name) == AlgorithmEd25519:
		return parseEd25519Private(r)
	case ecdsaAlgorithms[string(name)] != nil:
		return parseECDSAPrivate(ecdsaAlgorithms[string(name)], r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// MarshalAuthorized renders pub as a one-line text form:
// algorithm, base64 blob and an optional trailing comment.
func MarshalAuthorized(pub PublicKey, comment string) []byte {
	var buf bytes.Buffer
	buf.WriteString(pub.Algorithm())
	buf.WriteByte(' ')
	buf.WriteString(base64.StdEncoding.EncodeToString(pub.Blob()))
	if comment != "" {
		buf.WriteByte(' ')
		buf.WriteString(comment)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// ParseAuthorized decodes a one-line text key, returning the key and
// its comment.
func ParseAuthorized(line []byte) (PublicKey, string, error) {
	fields := bytes.Fields(line)
	if len(fields) < 2 {
		return nil, "", fmt.Errorf("hostkey: authorized key line needs algorithm and key")
	}
	blob, err := base64.StdEncoding.DecodeString(string(fields[1]))
	if err != nil {
		return nil, "", fmt.Errorf("hostkey: decoding key: %w", err)
	}
	pub, err := ParsePublicKey(blob)
	if err != nil {
		return nil, "", err
	}
	if pub.Algorithm() != string(fields[0]) {
		return nil, "", fmt.Errorf("hostkey: line says %q but blob is %q", fields[0], pub.Algorithm())
	}
	comment := ""
	if len(fields) > 2 {
		comment = string(bytes.Join(fields[2:], []byte(" ")))
	}
	return pub, comment, nil
}

// Set is a keyring of host keys indexed by algorithm name.
type Set struct {
	order []string
	keys  map[string]Signer
}

// NewSet builds a keyring from signers, keeping their order as the
// advertisement preference.
func NewSet(signers ...Signer) *Set {
	s := &Set{keys: make(map[string]Signer)}
	for _, k := range signers {
		s.Add(k)
	}
	return s
}

// Add inserts or replaces the key for its algorithm.
func (s *Set) Add(k Signer) {
	if _, ok := s.keys[k.Algorithm()]; !ok {
		s.order = append(s.order, k.Algorithm())
	}
	s.keys[k.Algorithm()] = k
}

// Algorithms lists the held algorithms in preference order.
func (s *Set) Algorithms() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// PublicBlob returns the wire blob for the named algorithm.
func (s *Set) PublicBlob(algorithm string) ([]byte, error) {
	k, ok := s.keys[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoKey, algorithm)
	}
	return k.Blob(), nil
}

// Signer returns the key pair for the named algorithm.
func (s *Set) Signer(algorithm string) (Signer, error) {
	k, ok := s.keys[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoKey, algorithm)
	}
	return k, nil
}
