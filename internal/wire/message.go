package wire

import (
	"errors"
	"fmt"
)

// Transport-layer message numbers.
const (
	MsgDisconnect   = 1
	MsgKexInit      = 20
	MsgNewKeys      = 21
	MsgKexECDHInit  = 30
	MsgKexECDHReply = 31
)

// Disconnect reason codes.
const (
	DisconnectProtocolError     = 2
	DisconnectKeyExchangeFailed = 3
	DisconnectByApplication     = 11
)

// MaxPayload bounds any single message payload. Peers exceeding it are
// treated as malformed.
const MaxPayload = 35000

// ErrWrongMessage is returned when a payload does not start with the
// message number the parser expects.
var ErrWrongMessage = errors.New("wire: wrong message number")

const cookieLen = 16

func expect(r *Reader, msg byte) error {
	got, err := r.Byte()
	if err != nil {
		return err
	}
	if got != msg {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongMessage, got, msg)
	}
	return nil
}

// ECDHInit carries the client's ephemeral public key.
type ECDHInit struct {
	ClientPublic []byte
}

// Marshal encodes the message, number byte included.
func (m *ECDHInit) Marshal() []byte {
	b := NewBuilder(len(m.ClientPublic) + 8)
	b.Byte(MsgKexECDHInit)
	b.String(m.ClientPublic)
	return b.Bytes()
}

// ParseECDHInit decodes payload and rejects trailing bytes.
func ParseECDHInit(payload []byte) (*ECDHInit, error) {
	r := NewReader(payload)
	if err := expect(r, MsgKexECDHInit); err != nil {
		return nil, err
	}
	pub, err := r.String()
	if err != nil {
		return nil, err
	}
	if err := r.End(); err != nil {
		return nil, err
	}
	return &ECDHInit{ClientPublic: pub}, nil
}

// ECDHReply carries the server host key blob, the server's ephemeral
// public key and the signature over the exchange hash.
type ECDHReply struct {
	HostKeyBlob  []byte
	ServerPublic []byte
	Signature    []byte
}

// Marshal encodes the message, number byte included.
func (m *ECDHReply) Marshal() []byte {
	b := NewBuilder(len(m.HostKeyBlob) + len(m.ServerPublic) + len(m.Signature) + 16)
	b.Byte(MsgKexECDHReply)
	b.String(m.HostKeyBlob)
	b.String(m.ServerPublic)
	b.String(m.Signature)
	return b.Bytes()
}

// ParseECDHReply decodes payload and rejects trailing bytes.
func ParseECDHReply(payload []byte) (*ECDHReply, error) {
	r := NewReader(payload)
	if err := expect(r, MsgKexECDHReply); err != nil {
		return nil, err
	}
	blob, err := r.String()
	if err != nil {
		return nil, err
	}
	pub, err := r.String()
	if err != nil {
		return nil, err
	}
	sig, err := r.String()
	if err != nil {
		return nil, err
	}
	if err := r.End(); err != nil {
		return nil, err
	}
	return &ECDHReply{HostKeyBlob: blob, ServerPublic: pub, Signature: sig}, nil
}

// KexInit is the algorithm negotiation message. Name-lists are in
// sender preference order. The raw payload of each side's KexInit is
// bound into the exchange hash, so parsers must keep it byte-exact.
type KexInit struct {
	Cookie                  [cookieLen]byte
	KexAlgorithms           []string
	HostKeyAlgorithms       []string
	CiphersClientToServer   []string
	CiphersServerToClient   []string
	MACsClientToServer      []string
	MACsServerToClient      []string
	CompressionClientServer []string
	CompressionServerClient []string
	LanguagesClientServer   []string
	LanguagesServerClient   []string
	FirstKexPacketFollows   bool
}

// Marshal encodes the message, number byte included.
func (m *KexInit) Marshal() []byte {
	b := NewBuilder(256)
	b.Byte(MsgKexInit)
	b.Raw(m.Cookie[:])
	b.NameList(m.KexAlgorithms)
	b.NameList(m.HostKeyAlgorithms)
	b.NameList(m.CiphersClientToServer)
	b.NameList(m.CiphersServerToClient)
	b.NameList(m.MACsClientToServer)
	b.NameList(m.MACsServerToClient)
	b.NameList(m.CompressionClientServer)
	b.NameList(m.CompressionServerClient)
	b.NameList(m.LanguagesClientServer)
	b.NameList(m.LanguagesServerClient)
	b.Bool(m.FirstKexPacketFollows)
	b.Uint32(0) // reserved
	return b.Bytes()
}

// ParseKexInit decodes payload and rejects trailing bytes.
func ParseKexInit(payload []byte) (*KexInit, error) {
	r := NewReader(payload)
	if err := expect(r, MsgKexInit); err != nil {
		return nil, err
	}
	var m KexInit
	cookie, err := r.Raw(cookieLen)
	if err != nil {
		return nil, err
	}
	copy(m.Cookie[:], cookie)
	for _, dst := range []*[]string{
		&m.KexAlgorithms,
		&m.HostKeyAlgorithms,
		&m.CiphersClientToServer,
		&m.CiphersServerToClient,
		&m.MACsClientToServer,
		&m.MACsServerToClient,
		&m.CompressionClientServer,
		&m.CompressionServerClient,
		&m.LanguagesClientServer,
		&m.LanguagesServerClient,
	} {
		if *dst, err = r.NameList(); err != nil {
			return nil, err
		}
	}
	if m.FirstKexPacketFollows, err = r.Bool(); err != nil {
		return nil, err
	}
	if _, err = r.Uint32(); err != nil { // reserved
		return nil, err
	}
	if err := r.End(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Disconnect tells the peer why the connection is being dropped.
type Disconnect struct {
	Reason      uint32
	Description string
}

// Marshal encodes the message, number byte included.
func (m *Disconnect) Marshal() []byte {
	b := NewBuilder(len(m.Description) + 16)
	b.Byte(MsgDisconnect)
	b.Uint32(m.Reason)
	b.String([]byte(m.Description))
	b.String(nil) // language tag
	return b.Bytes()
}

// ParseDisconnect decodes payload and rejects trailing bytes.
func ParseDisconnect(payload []byte) (*Disconnect, error) {
	r := NewReader(payload)
	if err := expect(r, MsgDisconnect); err != nil {
		return nil, err
	}
	var m Disconnect
	var err error
	if m.Reason, err = r.Uint32(); err != nil {
		return nil, err
	}
	desc, err := r.String()
	if err != nil {
		return nil, err
	}
	m.Description = string(desc)
	if _, err := r.String(); err != nil { // language tag
		return nil, err
	}
	if err := r.End(); err != nil {
		return nil, err
	}
	return &m, nil
}

// MarshalNewKeys encodes the bodyless NewKeys message.
func MarshalNewKeys() []byte {
	return []byte{MsgNewKeys}
}

// ParseNewKeys checks that payload is exactly a NewKeys message.
func ParseNewKeys(payload []byte) error {
	r := NewReader(payload)
	if err := expect(r, MsgNewKeys); err != nil {
		return err
	}
	return r.End()
}
