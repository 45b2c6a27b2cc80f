package kex_test

import (
	"crypto"
	"errors"
	"testing"

	"skiff/internal/kex"
)

func TestLookupDigestTiers(t *testing.T) {
	cases := []struct {
		name  string
		curve string
		bits  int
		hash  crypto.Hash
	}{
		{"curve25519-sha256", "curve25519", 255, crypto.SHA256},
		{"curve25519-sha256@libssh.org", "curve25519", 255, crypto.SHA256},
		{"ecdh-sha2-nistp256", "nistp256", 256, crypto.SHA256},
		{"ecdh-sha2-nistp384", "nistp384", 384, crypto.SHA384},
		{"ecdh-sha2-nistp521", "nistp521", 521, crypto.SHA512},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alg, err := kex.Lookup(tc.name)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if alg.Name != tc.name {
				t.Fatalf("Name = %q, want %q", alg.Name, tc.name)
			}
			if alg.Curve.Name() != tc.curve {
				t.Fatalf("Curve.Name() = %q, want %q", alg.Curve.Name(), tc.curve)
			}
			if alg.Curve.FieldBits() != tc.bits {
				t.Fatalf("FieldBits() = %d, want %d", alg.Curve.FieldBits(), tc.bits)
			}
			if alg.Hash != tc.hash {
				t.Fatalf("Hash = %v, want %v", alg.Hash, tc.hash)
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, name := range []string{"", "ecdh-sha2-nistp224", "diffie-hellman-group14-sha256"} {
		if _, err := kex.Lookup(name); !errors.Is(err, kex.ErrUnsupportedAlgorithm) {
			t.Fatalf("Lookup(%q): %v, want ErrUnsupportedAlgorithm", name, err)
		}
	}
}

func TestAlgorithmsPreferenceOrder(t *testing.T) {
	got := kex.Algorithms()
	want := []string{
		"curve25519-sha256",
		"curve25519-sha256@libssh.org",
		"ecdh-sha2-nistp256",
		"ecdh-sha2-nistp384",
		"ecdh-sha2-nistp521",
	}
	if len(got) != len(want) {
		t.Fatalf("Algorithms() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Algorithms()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	// Every advertised name must resolve.
	for _, name := range got {
		if _, err := kex.Lookup(name); err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
	}
}

func TestAlgorithmsCopyIsPrivate(t *testing.T) {
	a := kex.Algorithms()
	a[0] = "tampered"
	if kex.Algorithms()[0] != "curve25519-sha256" {
		t.Fatal("Algorithms() exposes its backing array")
	}
}
