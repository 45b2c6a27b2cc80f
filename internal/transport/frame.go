package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"skiff/internal/kex"
	"skiff/internal/wire"
)

// WritePayload frames one message payload with its length.
func WritePayload(w io.Writer, payload []byte) error {
	if len(payload) == 0 || len(payload) > wire.MaxPayload {
		return fmt.Errorf("%w: refusing to frame %d-byte payload", kex.ErrMalformedMessage, len(payload))
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadPayload reads one length-framed payload, bounding the advertised
// length before allocating.
func ReadPayload(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 || n > wire.MaxPayload {
		return nil, fmt.Errorf("%w: framed length %d", kex.ErrMalformedMessage, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
