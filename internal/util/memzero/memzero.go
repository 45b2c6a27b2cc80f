// Package memzero provides best-effort scrubbing for secret byte buffers.
package memzero

import "crypto/subtle"

// Zero overwrites b with zeros. The copy goes through
// subtle.ConstantTimeCopy so the write is not elided.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}

// ZeroAll wipes every buffer in bufs.
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		Zero(b)
	}
}
