package kex_test

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"

	"skiff/internal/kex"
)

// testSecret runs a real agreement so the tests hold a *kex.Secret the
// way a handshake would.
func testSecret(t *testing.T) *kex.Secret {
	t.Helper()
	curve := mustCurve(t, "curve25519-sha256")
	a, err := curve.GenerateEphemeral(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	b, err := curve.GenerateEphemeral(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	peer, err := curve.ValidatePeerPoint(b.PublicEncoded())
	if err != nil {
		t.Fatalf("ValidatePeerPoint: %v", err)
	}
	secret, err := a.SharedSecret(peer)
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	return secret
}

// mpintLonghand builds the signed big-endian mpint encoding from first
// principles: strip leading zeros, pad when the high bit is set, prefix
// with the length.
func mpintLonghand(v []byte) []byte {
	for len(v) > 0 && v[0] == 0 {
		v = v[1:]
	}
	if len(v) > 0 && v[0]&0x80 != 0 {
		v = append([]byte{0}, v...)
	}
	out := make([]byte, 4+len(v))
	binary.BigEndian.PutUint32(out, uint32(len(v)))
	copy(out[4:], v)
	return out
}

func sampleTranscript() *kex.Transcript {
	return &kex.Transcript{
		ClientVersion:   []byte("SSH-2.0-skiff_0.1"),
		ServerVersion:   []byte("SSH-2.0-skiffd_0.1"),
		ClientKexInit:   []byte{20, 1, 2, 3, 4},
		ServerKexInit:   []byte{20, 9, 8, 7},
		HostKeyBlob:     []byte("host key blob bytes"),
		ClientEphemeral: bytes.Repeat([]byte{0xaa}, 32),
		ServerEphemeral: bytes.Repeat([]byte{0xbb}, 32),
	}
}

func TestTranscriptHashMatchesLonghand(t *testing.T) {
	secret := testSecret(t)
	tr := sampleTranscript()

	got, err := tr.Hash(crypto.SHA256, secret)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	// Recompute the digest by hand: seven length-prefixed fields in
	// wire order, then the shared secret as an mpint.
	d := sha256.New()
	var prefix [4]byte
	for _, field := range [][]byte{
		tr.ClientVersion,
		tr.ServerVersion,
		tr.ClientKexInit,
		tr.ServerKexInit,
		tr.HostKeyBlob,
		tr.ClientEphemeral,
		tr.ServerEphemeral,
	} {
		binary.BigEndian.PutUint32(prefix[:], uint32(len(field)))
		d.Write(prefix[:])
		d.Write(field)
	}
	d.Write(mpintLonghand(secret.Bytes()))

	if !bytes.Equal(got, d.Sum(nil)) {
		t.Fatal("Hash disagrees with longhand recomputation")
	}
}

func TestTranscriptHashDigestWidths(t *testing.T) {
	secret := testSecret(t)
	tr := sampleTranscript()
	for _, tc := range []struct {
		hash crypto.Hash
		size int
	}{
		{crypto.SHA256, 32},
		{crypto.SHA384, 48},
		{crypto.SHA512, 64},
	} {
		h, err := tr.Hash(tc.hash, secret)
		if err != nil {
			t.Fatalf("Hash(%v): %v", tc.hash, err)
		}
		if len(h) != tc.size {
			t.Fatalf("Hash(%v) is %d bytes, want %d", tc.hash, len(h), tc.size)
		}
	}
}

func TestTranscriptHashFieldSensitivity(t *testing.T) {
	secret := testSecret(t)
	base, err := sampleTranscript().Hash(crypto.SHA256, secret)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	tr := sampleTranscript()
	tr.ServerKexInit[1] ^= 0x01
	changed, err := tr.Hash(crypto.SHA256, secret)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if bytes.Equal(base, changed) {
		t.Fatal("hash did not bind the kexinit payload")
	}
}

func TestTranscriptHashRejectsEmptyField(t *testing.T) {
	secret := testSecret(t)
	tr := sampleTranscript()
	tr.HostKeyBlob = nil
	if _, err := tr.Hash(crypto.SHA256, secret); !errors.Is(err, kex.ErrCryptoFailure) {
		t.Fatalf("Hash with empty field: %v, want ErrCryptoFailure", err)
	}
}

func TestTranscriptHashRejectsMissingSecret(t *testing.T) {
	tr := sampleTranscript()
	if _, err := tr.Hash(crypto.SHA256, nil); !errors.Is(err, kex.ErrCryptoFailure) {
		t.Fatalf("Hash with nil secret: %v, want ErrCryptoFailure", err)
	}
	secret := testSecret(t)
	secret.Wipe()
	if _, err := tr.Hash(crypto.SHA256, secret); !errors.Is(err, kex.ErrCryptoFailure) {
		t.Fatalf("Hash with wiped secret: %v, want ErrCryptoFailure", err)
	}
}

// TestExchangeReferenceVectors pins a whole exchange to precomputed
// values: fixed ephemeral seeds through the curve25519 agreement, the
// exchange hash over a fixed transcript, and the six derived keys.
// Drift anywhere in encoding, hashing or derivation surfaces here.
func TestExchangeReferenceVectors(t *testing.T) {
	mustHex := func(s string) []byte {
		t.Helper()
		v, err := hex.DecodeString(s)
		if err != nil {
			t.Fatalf("bad hex constant: %v", err)
		}
		return v
	}
	aSeed := mustHex("0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	bSeed := mustHex("65666768696a6b6c6d6e6f707172737475767778797a7b7c7d7e7f8081828384")

	curve := mustCurve(t, "curve25519-sha256")
	a, err := curve.GenerateEphemeral(bytes.NewReader(aSeed))
	if err != nil {
		t.Fatalf("GenerateEphemeral(a): %v", err)
	}
	b, err := curve.GenerateEphemeral(bytes.NewReader(bSeed))
	if err != nil {
		t.Fatalf("GenerateEphemeral(b): %v", err)
	}
	if want := mustHex("07a37cbc142093c8b755dc1b10e86cb426374ad16aa853ed0bdfc0b2b86d1c7c"); !bytes.Equal(a.PublicEncoded(), want) {
		t.Fatalf("a public = %x, want %x", a.PublicEncoded(), want)
	}
	if want := mustHex("5714769d116bf76436ae74bc793d2c30ad1903c59ac5273805c7e2698b410c36"); !bytes.Equal(b.PublicEncoded(), want) {
		t.Fatalf("b public = %x, want %x", b.PublicEncoded(), want)
	}

	peer, err := curve.ValidatePeerPoint(b.PublicEncoded())
	if err != nil {
		t.Fatalf("ValidatePeerPoint: %v", err)
	}
	secret, err := a.SharedSecret(peer)
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	if want := mustHex("c9ea6a3f79a000b60b076d4afc990b272f3f0b5aaa3f0b8713c209273e363863"); !bytes.Equal(secret.Bytes(), want) {
		t.Fatalf("shared secret = %x, want %x", secret.Bytes(), want)
	}

	tr := &kex.Transcript{
		ClientVersion:   []byte("SSH-2.0-skiff_0.1.0"),
		ServerVersion:   []byte("SSH-2.0-skiffd_0.1.0"),
		ClientKexInit:   []byte{20, 1, 2, 3, 4},
		ServerKexInit:   []byte{20, 9, 8, 7},
		HostKeyBlob:     []byte("golden host key blob"),
		ClientEphemeral: a.PublicEncoded(),
		ServerEphemeral: b.PublicEncoded(),
	}
	h, err := tr.Hash(crypto.SHA256, secret)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if want := mustHex("f565ae1ab7ec9fd2287fbcd63808bdd301bfe7beeb5b5c2151f502ac4974c1d0"); !bytes.Equal(h, want) {
		t.Fatalf("exchange hash = %x, want %x", h, want)
	}

	toServer := mustSuite(t, "chacha20-poly1305@openssh.com", "")
	toClient := mustSuite(t, "aes128-ctr", "hmac-sha2-256")
	km := kex.DeriveKeys(crypto.SHA256, secret, h, h, toServer, toClient)

	for _, tc := range []struct {
		name string
		got  []byte
		want string
	}{
		{"KeyClientToServer", km.KeyClientToServer, "97ac932997a0432e08c0325cb78b9f11252ed6f53b0c03019a0611116b25e73a4308a282d3663e72918ca6e47cc13ca8ba0077c49f0ad851c0653c08ebb1eb92"},
		{"IVServerToClient", km.IVServerToClient, "616c2aca72f5d54e41c5eb8023b54b4b"},
		{"KeyServerToClient", km.KeyServerToClient, "42313c3062e40be2ae66576e201dbd46"},
		{"MACServerToClient", km.MACServerToClient, "11c5a525844f74ea3e3fd44723d5c79abc4b65539048ee70aa4905e3831588f9"},
	} {
		if want := mustHex(tc.want); !bytes.Equal(tc.got, want) {
			t.Fatalf("%s = %x, want %x", tc.name, tc.got, want)
		}
	}
	if km.IVClientToServer != nil || km.MACClientToServer != nil {
		t.Fatal("AEAD direction derived an IV or MAC key")
	}
}
