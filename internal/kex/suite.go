package kex

import "fmt"

// cipherSpec carries the key material sizes a cipher consumes. AEAD
// ciphers bring their own integrity and take no separate MAC key.
type cipherSpec struct {
	keyLen int
	ivLen  int
	aead   bool
}

var cipherSpecs = map[string]cipherSpec{
	"aes128-ctr":                    {keyLen: 16, ivLen: 16},
	"aes192-ctr":                    {keyLen: 24, ivLen: 16},
	"aes256-ctr":                    {keyLen: 32, ivLen: 16},
	"aes128-gcm@openssh.com":        {keyLen: 16, ivLen: 12, aead: true},
	"aes256-gcm@openssh.com":        {keyLen: 32, ivLen: 12, aead: true},
	"chacha20-poly1305@openssh.com": {keyLen: 64, ivLen: 0, aead: true},
}

var macKeyLens = map[string]int{
	"hmac-sha1":                     20,
	"hmac-sha2-256":                 32,
	"hmac-sha2-512":                 64,
	"hmac-sha2-256-etm@openssh.com": 32,
	"hmac-sha2-512-etm@openssh.com": 64,
}

// Suite is the resolved key material demand for one direction of the
// record layer.
type Suite struct {
	Cipher string
	MAC    string
	KeyLen int
	IVLen  int
	MACLen int
}

// SuiteFor resolves the negotiated cipher and MAC names for one
// direction into their key sizes. Unknown names fail negotiation.
func SuiteFor(cipher, mac string) (Suite, error) {
	cs, ok := cipherSpecs[cipher]
	if !ok {
		return Suite{}, fmt.Errorf("%w: cipher %q", ErrUnsupportedAlgorithm, cipher)
	}
	s := Suite{Cipher: cipher, MAC: mac, KeyLen: cs.keyLen, IVLen: cs.ivLen}
	if cs.aead {
		return s, nil
	}
	n, ok := macKeyLens[mac]
	if !ok {
		return Suite{}, fmt.Errorf("%w: mac %q", ErrUnsupportedAlgorithm, mac)
	}
	s.MACLen = n
	return s, nil
}

// Ciphers lists the supported cipher names in preference order.
func Ciphers() []string {
	return []string{
		"chacha20-poly1305@openssh.com",
		"aes128-gcm@openssh.com",
		"aes256-gcm@openssh.com",
		"aes128-ctr",
		"aes192-ctr",
		"aes256-ctr",
	}
}

// MACs lists the supported MAC names in preference order.
func MACs() []string {
	return []string{
		"hmac-sha2-256-etm@openssh.com",
		"hmac-sha2-512-etm@openssh.com",
		"hmac-sha2-256",
		"hmac-sha2-512",
		"hmac-sha1",
	}
}
