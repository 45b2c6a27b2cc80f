package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"skiff/internal/hostkey"
	"skiff/internal/util/memzero"
)

const (
	hostKeyPrefix = "host_key."
	hostKeySuffix = ".enc"
	certSuffix    = "-cert.pub"
)

var (
	// ErrNoHostKeys is returned when the store directory holds no keys.
	ErrNoHostKeys = errors.New("store: no host keys")

	// ErrCertificateMismatch is returned when a companion certificate
	// parses but carries a different key than the host key it sits next
	// to. Unlike an absent companion this is never ignored.
	ErrCertificateMismatch = errors.New("store: companion certificate does not match host key")
)

// HostKeyFileStore persists one encrypted host key per algorithm under
// a directory, as host_key.<algorithm>.enc. A plaintext companion
// certificate may sit next to a key as host_key.<algorithm>-cert.pub;
// companions are produced out of band and only read here.
type HostKeyFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewHostKeyFileStore returns a HostKeyFileStore rooted at dir.
func NewHostKeyFileStore(dir string) *HostKeyFileStore {
	return &HostKeyFileStore{dir: dir}
}

// KeyPath is the encrypted key file for one algorithm.
func (s *HostKeyFileStore) KeyPath(algorithm string) string {
	return filepath.Join(s.dir, hostKeyPrefix+algorithm+hostKeySuffix)
}

// CertPath is the companion certificate file for one algorithm.
func (s *HostKeyFileStore) CertPath(algorithm string) string {
	return filepath.Join(s.dir, hostKeyPrefix+algorithm+certSuffix)
}

// SaveKey encrypts one host key under passphrase and writes it to disk,
// replacing any previous key of the same algorithm.
func (s *HostKeyFileStore) SaveKey(passphrase string, key hostkey.Signer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := hostkey.MarshalPrivate(key)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)

	N, r, p := scryptParamsDefault()
	ct, err := encrypt(passphrase, raw, N, r, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.KeyPath(key.Algorithm()), ct, 0o600)
}

// Algorithms lists the algorithms with a stored key, sorted by name.
func (s *HostKeyFileStore) Algorithms() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.algorithms()
}

func (s *HostKeyFileStore) algorithms() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, hostKeyPrefix+"*"+hostKeySuffix))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), hostKeyPrefix), hostKeySuffix)
		if name != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// LoadKeys decrypts every stored host key and pairs each with its
// companion certificate when one is present. A missing or unreadable
// companion means the key simply has no certificate; a companion that
// parses but does not match its key fails the whole load.
func (s *HostKeyFileStore) LoadKeys(passphrase string) (*hostkey.Set, map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	algorithms, err := s.algorithms()
	if err != nil {
		return nil, nil, err
	}
	if len(algorithms) == 0 {
		return nil, nil, fmt.Errorf("%w under %s", ErrNoHostKeys, s.dir)
	}

	signers := make([]hostkey.Signer, 0, len(algorithms))
	certs := make(map[string][]byte)
	for _, alg := range algorithms {
		ct, err := os.ReadFile(s.KeyPath(alg))
		if err != nil {
			return nil, nil, err
		}
		raw, err := decrypt(passphrase, ct)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", alg, err)
		}
		key, err := hostkey.ParsePrivate(raw)
		memzero.Zero(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("store: parsing %s key: %w", alg, err)
		}
		signers = append(signers, key)

		cert, err := s.loadCert(alg, key)
		if err != nil {
			return nil, nil, err
		}
		if cert != nil {
			certs[alg] = cert
		}
	}
	return hostkey.NewSet(signers...), certs, nil
}

// loadCert reads the companion certificate for one key. Absent or
// unreadable companions yield nil; a companion whose key differs from
// the host key is an error.
func (s *HostKeyFileStore) loadCert(algorithm string, key hostkey.Signer) ([]byte, error) {
	line, err := os.ReadFile(s.CertPath(algorithm))
	if err != nil {
		return nil, nil
	}
	pub, _, err := hostkey.ParseAuthorized(line)
	if err != nil {
		return nil, nil
	}
	if !bytes.Equal(pub.Blob(), key.Blob()) {
		return nil, fmt.Errorf("%w: %s", ErrCertificateMismatch, algorithm)
	}
	return line, nil
}
