package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	N, r, p := scryptParamsDefault()
	blob, err := encrypt("passphrase", []byte("secret key bytes"), N, r, p)
	require.NoError(t, err)

	pt, err := decrypt("passphrase", blob)
	require.NoError(t, err)
	require.Equal(t, []byte("secret key bytes"), pt)
}

func TestEnvelope_WrongPassphrase(t *testing.T) {
	N, r, p := scryptParamsDefault()
	blob, err := encrypt("correct", []byte("payload"), N, r, p)
	require.NoError(t, err)

	_, err = decrypt("wrong", blob)
	require.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestEnvelope_TamperedCiphertext(t *testing.T) {
	N, r, p := scryptParamsDefault()
	blob, err := encrypt("passphrase", []byte("payload"), N, r, p)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(blob, &env))
	env.Cipher[0] ^= 0x01
	tampered, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = decrypt("passphrase", tampered)
	require.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestEnvelope_FutureVersionRejected(t *testing.T) {
	N, r, p := scryptParamsDefault()
	blob, err := encrypt("passphrase", []byte("payload"), N, r, p)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(blob, &env))
	env.V = envelopeVersion + 1
	future, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = decrypt("passphrase", future)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrWrongPassphrase)
}

func TestEnvelope_SaltBound(t *testing.T) {
	// The salt rides as associated data: swapping it in place breaks
	// the seal even though the ciphertext is untouched.
	N, r, p := scryptParamsDefault()
	blob, err := encrypt("passphrase", []byte("payload"), N, r, p)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(blob, &env))
	env.Salt[0] ^= 0x01
	swapped, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = decrypt("passphrase", swapped)
	require.ErrorIs(t, err, ErrWrongPassphrase)
}
