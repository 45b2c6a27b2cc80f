package transport

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	bannerPrefix = "SSH-"

	// Caps for the pre-banner phase, where a peer may send free-form
	// lines before its version string.
	maxBannerLineLength = 8192
	maxPreBannerLines   = 1024
)

// ErrBadBanner is returned when a peer's version line cannot be
// accepted.
var ErrBadBanner = errors.New("transport: bad version banner")

// SendBanner writes the local version line. software must be free of
// whitespace; it lands in the peer's key-exchange transcript verbatim.
func SendBanner(w io.Writer, software string) ([]byte, error) {
	if software == "" || strings.ContainsAny(software, " \t\r\n") {
		return nil, fmt.Errorf("%w: invalid software version %q", ErrBadBanner, software)
	}
	line := []byte(bannerPrefix + "2.0-" + software)
	if _, err := w.Write(append(append([]byte(nil), line...), '\r', '\n')); err != nil {
		return nil, err
	}
	return line, nil
}

// ReadBanner consumes lines until the peer's version line appears and
// returns it without its line terminator. Lines before the banner are
// skipped, within bounds. Protocol versions 2.0 and 1.99 are accepted.
func ReadBanner(r io.Reader) ([]byte, error) {
	for i := 0; i < maxPreBannerLines; i++ {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(string(line), bannerPrefix) {
			continue
		}
		if err := checkProtoVersion(line); err != nil {
			return nil, err
		}
		return line, nil
	}
	return nil, fmt.Errorf("%w: no version line in %d lines", ErrBadBanner, maxPreBannerLines)
}

// readLine reads a single LF-terminated line one byte at a time so no
// bytes past the banner are consumed, stripping an optional CR.
func readLine(r io.Reader) ([]byte, error) {
	var line []byte
	var b [1]byte
	for len(line) < maxBannerLineLength {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		if b[0] == '\n' {
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			return line, nil
		}
		line = append(line, b[0])
	}
	return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrBadBanner, maxBannerLineLength)
}

// checkProtoVersion accepts SSH-2.0-… and the compatibility marker
// SSH-1.99-….
func checkProtoVersion(line []byte) error {
	rest := strings.TrimPrefix(string(line), bannerPrefix)
	dash := strings.IndexByte(rest, '-')
	if dash < 0 {
		return fmt.Errorf("%w: %q", ErrBadBanner, line)
	}
	proto := rest[:dash]
	if proto != "2.0" && proto != "1.99" {
		return fmt.Errorf("%w: unsupported protocol version %q", ErrBadBanner, proto)
	}
	if rest[dash+1:] == "" {
		return fmt.Errorf("%w: empty software version", ErrBadBanner)
	}
	return nil
}
