package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"skiff/internal/hostkey"
)

func knownHostsPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "known_hosts")
}

func TestKnownHosts_FirstUseThenTrusted(t *testing.T) {
	s := NewKnownHostsFileStore(knownHostsPath(t))
	key := generateHostKey(t, hostkey.AlgorithmEd25519)

	err := s.Verify("bastion:22", key.Blob())
	require.ErrorIs(t, err, ErrUnknownHost)

	require.NoError(t, s.Add("bastion:22", key.Blob()))
	require.NoError(t, s.Verify("bastion:22", key.Blob()))
}

func TestKnownHosts_MismatchIsNotFirstUse(t *testing.T) {
	s := NewKnownHostsFileStore(knownHostsPath(t))
	recorded := generateHostKey(t, hostkey.AlgorithmEd25519)
	presented := generateHostKey(t, hostkey.AlgorithmEd25519)

	require.NoError(t, s.Add("bastion:22", recorded.Blob()))

	err := s.Verify("bastion:22", presented.Blob())
	require.ErrorIs(t, err, ErrHostKeyMismatch)
	require.NotErrorIs(t, err, ErrUnknownHost)
}

func TestKnownHosts_PerAlgorithmEntries(t *testing.T) {
	s := NewKnownHostsFileStore(knownHostsPath(t))
	ed := generateHostKey(t, hostkey.AlgorithmEd25519)
	ec := generateHostKey(t, "ecdsa-sha2-nistp256")

	require.NoError(t, s.Add("bastion:22", ed.Blob()))

	// A different key type for the same host is unknown, not a mismatch.
	err := s.Verify("bastion:22", ec.Blob())
	require.ErrorIs(t, err, ErrUnknownHost)

	require.NoError(t, s.Add("bastion:22", ec.Blob()))
	require.NoError(t, s.Verify("bastion:22", ed.Blob()))
	require.NoError(t, s.Verify("bastion:22", ec.Blob()))
}

func TestKnownHosts_AddReplaces(t *testing.T) {
	s := NewKnownHostsFileStore(knownHostsPath(t))
	first := generateHostKey(t, hostkey.AlgorithmEd25519)
	second := generateHostKey(t, hostkey.AlgorithmEd25519)

	require.NoError(t, s.Add("bastion:22", first.Blob()))
	require.NoError(t, s.Add("bastion:22", second.Blob()))

	require.NoError(t, s.Verify("bastion:22", second.Blob()))
	require.ErrorIs(t, s.Verify("bastion:22", first.Blob()), ErrHostKeyMismatch)
}

func TestKnownHosts_HostsAreIndependent(t *testing.T) {
	s := NewKnownHostsFileStore(knownHostsPath(t))
	key := generateHostKey(t, hostkey.AlgorithmEd25519)

	require.NoError(t, s.Add("alpha:22", key.Blob()))
	require.ErrorIs(t, s.Verify("beta:22", key.Blob()), ErrUnknownHost)
}

func TestKnownHosts_SkipsJunkLines(t *testing.T) {
	path := knownHostsPath(t)
	s := NewKnownHostsFileStore(path)
	key := generateHostKey(t, hostkey.AlgorithmEd25519)
	require.NoError(t, s.Add("bastion:22", key.Blob()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	junk := []byte("# comment line\nbroken\nhost alg not-base64!\n")
	require.NoError(t, os.WriteFile(path, append(junk, data...), 0o600))

	require.NoError(t, s.Verify("bastion:22", key.Blob()))
}

func TestKnownHosts_RejectsGarbageBlob(t *testing.T) {
	s := NewKnownHostsFileStore(knownHostsPath(t))
	require.Error(t, s.Verify("bastion:22", []byte("not a key blob")))
}
