package kex

import "fmt"

// Role says which side of the connection this peer drives. The client
// initiates the exchange; the server answers and authenticates.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Session is the per-connection identity of the key-exchange layer.
// Its id is pinned by the first completed exchange and never changes
// afterwards; re-exchanges on the same connection produce fresh keys
// bound to the original id.
type Session struct {
	role      Role
	id        []byte
	exchanges uint32
}

// NewSession starts an empty session for one connection.
func NewSession(role Role) *Session {
	return &Session{role: role}
}

// Role returns the side this session drives.
func (s *Session) Role() Role { return s.role }

// ID returns the pinned session identifier, or nil before the first
// exchange completes.
func (s *Session) ID() []byte { return s.id }

// Exchanges returns how many handshakes have completed on this session.
func (s *Session) Exchanges() uint32 { return s.exchanges }

// pin sets the session identifier from the first exchange hash. Later
// calls keep the pinned value untouched and return it.
func (s *Session) pin(exchangeHash []byte) []byte {
	if s.id == nil {
		s.id = append([]byte(nil), exchangeHash...)
	}
	return s.id
}

// NewHandshake prepares one key exchange on this session. The
// negotiated names in cfg must already be agreed by both sides;
// unknown names fail here, before any message is consumed.
func (s *Session) NewHandshake(cfg Config) (*Handshake, error) {
	alg, err := Lookup(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	toServer, err := SuiteFor(cfg.CipherClientToServer, cfg.MACClientToServer)
	if err != nil {
		return nil, err
	}
	toClient, err := SuiteFor(cfg.CipherServerToClient, cfg.MACServerToClient)
	if err != nil {
		return nil, err
	}
	if cfg.Send == nil {
		return nil, fmt.Errorf("kex: config needs a Send callback")
	}
	if s.role == RoleServer && cfg.HostKeys == nil {
		return nil, fmt.Errorf("%w: no host key provider configured", ErrHostKeyUnavailable)
	}
	if s.role == RoleClient && (cfg.VerifyHostKey == nil || cfg.VerifySignature == nil) {
		return nil, fmt.Errorf("kex: client config needs VerifyHostKey and VerifySignature")
	}
	if cfg.Rand == nil {
		cfg.Rand = defaultRand
	}
	return &Handshake{
		session:  s,
		cfg:      cfg,
		alg:      alg,
		toServer: toServer,
		toClient: toClient,
		state:    StateNew,
	}, nil
}
