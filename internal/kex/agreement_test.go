package kex_test

import (
	"bytes"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"

	"skiff/internal/kex"
)

func mustCurve(t *testing.T, algorithm string) kex.Curve {
	t.Helper()
	alg, err := kex.Lookup(algorithm)
	if err != nil {
		t.Fatalf("Lookup(%s): %v", algorithm, err)
	}
	return alg.Curve
}

func TestAgreementSymmetry(t *testing.T) {
	for _, name := range kex.Algorithms() {
		t.Run(name, func(t *testing.T) {
			curve := mustCurve(t, name)

			a, err := curve.GenerateEphemeral(rand.Reader)
			if err != nil {
				t.Fatalf("GenerateEphemeral: %v", err)
			}
			b, err := curve.GenerateEphemeral(rand.Reader)
			if err != nil {
				t.Fatalf("GenerateEphemeral: %v", err)
			}

			// Each side sees only the other's wire encoding.
			peerB, err := curve.ValidatePeerPoint(b.PublicEncoded())
			if err != nil {
				t.Fatalf("ValidatePeerPoint(b): %v", err)
			}
			peerA, err := curve.ValidatePeerPoint(a.PublicEncoded())
			if err != nil {
				t.Fatalf("ValidatePeerPoint(a): %v", err)
			}

			kab, err := a.SharedSecret(peerB)
			if err != nil {
				t.Fatalf("a.SharedSecret: %v", err)
			}
			kba, err := b.SharedSecret(peerA)
			if err != nil {
				t.Fatalf("b.SharedSecret: %v", err)
			}
			if len(kab.Bytes()) == 0 {
				t.Fatal("empty shared secret")
			}
			if !bytes.Equal(kab.Bytes(), kba.Bytes()) {
				t.Fatal("shared secrets differ between sides")
			}
		})
	}
}

func TestEphemeralEncodingShape(t *testing.T) {
	cases := []struct {
		algorithm string
		size      int
	}{
		{"curve25519-sha256", 32},
		{"ecdh-sha2-nistp256", 65},
		{"ecdh-sha2-nistp384", 97},
		{"ecdh-sha2-nistp521", 133},
	}
	for _, tc := range cases {
		t.Run(tc.algorithm, func(t *testing.T) {
			curve := mustCurve(t, tc.algorithm)
			e, err := curve.GenerateEphemeral(rand.Reader)
			if err != nil {
				t.Fatalf("GenerateEphemeral: %v", err)
			}
			pub := e.PublicEncoded()
			if len(pub) != tc.size {
				t.Fatalf("PublicEncoded() is %d bytes, want %d", len(pub), tc.size)
			}
			if tc.size != 32 && pub[0] != 4 {
				t.Fatalf("leading byte %#x, want uncompressed marker 0x04", pub[0])
			}
		})
	}
}

func TestValidatePeerPointRejectsWrongLength(t *testing.T) {
	for _, name := range []string{"curve25519-sha256", "ecdh-sha2-nistp256", "ecdh-sha2-nistp521"} {
		curve := mustCurve(t, name)
		e, err := curve.GenerateEphemeral(rand.Reader)
		if err != nil {
			t.Fatalf("GenerateEphemeral: %v", err)
		}
		pub := e.PublicEncoded()
		for _, enc := range [][]byte{nil, pub[:len(pub)-1], append(append([]byte(nil), pub...), 0)} {
			if _, err := curve.ValidatePeerPoint(enc); !errors.Is(err, kex.ErrInvalidPeerKey) {
				t.Fatalf("%s: ValidatePeerPoint(%d bytes): %v, want ErrInvalidPeerKey", name, len(enc), err)
			}
		}
	}
}

func TestValidatePeerPointRejectsCompressed(t *testing.T) {
	curve := mustCurve(t, "ecdh-sha2-nistp256")
	e, err := curve.GenerateEphemeral(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	enc := append([]byte(nil), e.PublicEncoded()...)
	enc[0] = 2
	if _, err := curve.ValidatePeerPoint(enc); !errors.Is(err, kex.ErrInvalidPeerKey) {
		t.Fatalf("compressed encoding: %v, want ErrInvalidPeerKey", err)
	}
}

func TestValidatePeerPointRejectsOffCurve(t *testing.T) {
	// (0, 0) is never on a short Weierstrass curve with b != 0.
	cases := []struct {
		algorithm string
		size      int
	}{
		{"ecdh-sha2-nistp256", 65},
		{"ecdh-sha2-nistp384", 97},
		{"ecdh-sha2-nistp521", 133},
	}
	for _, tc := range cases {
		curve := mustCurve(t, tc.algorithm)
		enc := make([]byte, tc.size)
		enc[0] = 4
		if _, err := curve.ValidatePeerPoint(enc); !errors.Is(err, kex.ErrInvalidPeerKey) {
			t.Fatalf("%s: origin point: %v, want ErrInvalidPeerKey", tc.algorithm, err)
		}
	}
}

func TestValidatePeerPointRejectsOutOfRangeCoordinate(t *testing.T) {
	cases := []struct {
		algorithm string
		params    *elliptic.CurveParams
	}{
		{"ecdh-sha2-nistp256", elliptic.P256().Params()},
		{"ecdh-sha2-nistp384", elliptic.P384().Params()},
		{"ecdh-sha2-nistp521", elliptic.P521().Params()},
	}
	for _, tc := range cases {
		curve := mustCurve(t, tc.algorithm)
		byteLen := (tc.params.BitSize + 7) / 8
		// X equal to the field prime is one past the valid range.
		enc := make([]byte, 1+2*byteLen)
		enc[0] = 4
		tc.params.P.FillBytes(enc[1 : 1+byteLen])
		enc[len(enc)-1] = 1
		if _, err := curve.ValidatePeerPoint(enc); !errors.Is(err, kex.ErrInvalidPeerKey) {
			t.Fatalf("%s: X = p: %v, want ErrInvalidPeerKey", tc.algorithm, err)
		}
	}
}

func TestCurve25519RejectsIdentity(t *testing.T) {
	curve := mustCurve(t, "curve25519-sha256")
	if _, err := curve.ValidatePeerPoint(make([]byte, 32)); !errors.Is(err, kex.ErrInvalidPeerKey) {
		t.Fatalf("all-zero point: %v, want ErrInvalidPeerKey", err)
	}
}

func TestCurve25519RejectsLowOrderPoint(t *testing.T) {
	curve := mustCurve(t, "curve25519-sha256")
	e, err := curve.GenerateEphemeral(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	// u = 1 is a low-order point: it survives shape validation but the
	// agreement lands on the all-zero value.
	low := make([]byte, 32)
	low[0] = 1
	peer, err := curve.ValidatePeerPoint(low)
	if err != nil {
		t.Fatalf("ValidatePeerPoint: %v", err)
	}
	if _, err := e.SharedSecret(peer); !errors.Is(err, kex.ErrInvalidPeerKey) {
		t.Fatalf("SharedSecret(low order): %v, want ErrInvalidPeerKey", err)
	}
}

func TestSharedSecretRejectsForeignPoint(t *testing.T) {
	nist := mustCurve(t, "ecdh-sha2-nistp256")
	x := mustCurve(t, "curve25519-sha256")

	e, err := nist.GenerateEphemeral(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	other, err := x.GenerateEphemeral(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	peer, err := x.ValidatePeerPoint(other.PublicEncoded())
	if err != nil {
		t.Fatalf("ValidatePeerPoint: %v", err)
	}
	if _, err := e.SharedSecret(peer); !errors.Is(err, kex.ErrInvalidPeerKey) {
		t.Fatalf("SharedSecret(foreign point): %v, want ErrInvalidPeerKey", err)
	}
}

func TestDestroyedEphemeralRefusesAgreement(t *testing.T) {
	for _, name := range []string{"curve25519-sha256", "ecdh-sha2-nistp384"} {
		t.Run(name, func(t *testing.T) {
			curve := mustCurve(t, name)
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
			a.Destroy()
			if _, err := a.SharedSecret(peer); !errors.Is(err, kex.ErrCryptoFailure) {
				t.Fatalf("SharedSecret after Destroy: %v, want ErrCryptoFailure", err)
			}
		})
	}
}

func TestSecretWipe(t *testing.T) {
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
	raw := secret.Bytes()
	secret.Wipe()
	for _, v := range raw {
		if v != 0 {
			t.Fatal("secret bytes survive Wipe")
		}
	}
	if secret.Bytes() != nil {
		t.Fatal("Bytes() non-nil after Wipe")
	}
	secret.Wipe() // second wipe is a no-op
}
