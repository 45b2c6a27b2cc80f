package store

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"skiff/internal/hostkey"
)

var (
	// ErrUnknownHost is returned when no entry exists for a host and
	// key type. Callers decide whether first use means trust.
	ErrUnknownHost = errors.New("store: unknown host")

	// ErrHostKeyMismatch is returned when a host presents a key that
	// differs from the recorded one. Never treated as first use.
	ErrHostKeyMismatch = errors.New("store: host key changed")
)

// KnownHostsFileStore records one trusted key per host and algorithm in
// a line-oriented file: "host algorithm base64-key". Comment lines and
// lines it cannot parse are skipped.
type KnownHostsFileStore struct {
	path string
	mu   sync.Mutex
}

// NewKnownHostsFileStore returns a KnownHostsFileStore backed by path.
func NewKnownHostsFileStore(path string) *KnownHostsFileStore {
	return &KnownHostsFileStore{path: path}
}

type knownHostEntry struct {
	host      string
	algorithm string
	blob      []byte
}

// Verify checks the key a host presented against the recorded entry for
// its algorithm. Absence and mismatch are distinct failures: a missing
// entry is ErrUnknownHost, a different recorded key ErrHostKeyMismatch.
func (s *KnownHostsFileStore) Verify(host string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pub, err := hostkey.ParsePublicKey(blob)
	if err != nil {
		return err
	}
	entries, err := s.read()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.host != host || e.algorithm != pub.Algorithm() {
			continue
		}
		if bytes.Equal(e.blob, blob) {
			return nil
		}
		return fmt.Errorf("%w: %s (%s)", ErrHostKeyMismatch, host, pub.Algorithm())
	}
	return fmt.Errorf("%w: %s (%s)", ErrUnknownHost, host, pub.Algorithm())
}

// Add records the entry for a host and key type, replacing a previous
// one.
func (s *KnownHostsFileStore) Add(host string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pub, err := hostkey.ParsePublicKey(blob)
	if err != nil {
		return err
	}
	entries, err := s.read()
	if err != nil {
		return err
	}
	kept := make([]knownHostEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.host == host && e.algorithm == pub.Algorithm() {
			continue
		}
		kept = append(kept, e)
	}
	kept = append(kept, knownHostEntry{
		host:      host,
		algorithm: pub.Algorithm(),
		blob:      append([]byte(nil), blob...),
	})
	return s.write(kept)
}

func (s *KnownHostsFileStore) read() ([]knownHostEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entries []knownHostEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		blob, err := base64.StdEncoding.DecodeString(fields[2])
		if err != nil {
			continue
		}
		entries = append(entries, knownHostEntry{host: fields[0], algorithm: fields[1], blob: blob})
	}
	return entries, nil
}

func (s *KnownHostsFileStore) write(entries []knownHostEntry) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s %s\n", e.host, e.algorithm, base64.StdEncoding.EncodeToString(e.blob))
	}
	return os.WriteFile(s.path, []byte(b.String()), 0o600)
}
