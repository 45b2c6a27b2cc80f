package kex_test

import (
	"errors"
	"fmt"
	"testing"

	"skiff/internal/kex"
	"skiff/internal/wire"
)

func TestSeverityOf(t *testing.T) {
	cases := []struct {
		err  error
		want kex.Severity
	}{
		{kex.ErrUnsupportedAlgorithm, kex.SeverityDisconnect},
		{kex.ErrMalformedMessage, kex.SeverityDisconnect},
		{kex.ErrUnexpectedMessage, kex.SeverityDisconnect},
		{kex.ErrInvalidPeerKey, kex.SeverityDisconnect},
		{kex.ErrCryptoFailure, kex.SeverityProcessFatal},
		{kex.ErrHostKeyUnavailable, kex.SeverityConnectionFatal},
		{kex.ErrSigningFailed, kex.SeverityConnectionFatal},
		{kex.ErrSignatureRejected, kex.SeverityConnectionFatal},
		{kex.ErrHostKeyUntrusted, kex.SeverityConnectionFatal},
		{errors.New("something else"), kex.SeverityConnectionFatal},
	}
	for _, tc := range cases {
		if got := kex.SeverityOf(tc.err); got != tc.want {
			t.Fatalf("SeverityOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
		// Wrapping must not change the classification.
		wrapped := fmt.Errorf("context: %w", tc.err)
		if got := kex.SeverityOf(wrapped); got != tc.want {
			t.Fatalf("SeverityOf(wrapped %v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestDisconnectReason(t *testing.T) {
	if got := kex.DisconnectReason(kex.ErrUnsupportedAlgorithm); got != wire.DisconnectKeyExchangeFailed {
		t.Fatalf("DisconnectReason(ErrUnsupportedAlgorithm) = %d, want %d", got, wire.DisconnectKeyExchangeFailed)
	}
	for _, err := range []error{kex.ErrMalformedMessage, kex.ErrUnexpectedMessage, kex.ErrInvalidPeerKey} {
		if got := kex.DisconnectReason(err); got != wire.DisconnectProtocolError {
			t.Fatalf("DisconnectReason(%v) = %d, want %d", err, got, wire.DisconnectProtocolError)
		}
	}
}
