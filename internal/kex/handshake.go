package kex

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"skiff/internal/wire"
)

var defaultRand io.Reader = rand.Reader

// State is the progress of one key exchange.
type State int

const (
	StateNew State = iota
	StateAwaitPeerKey
	StateSecretComputed
	StateHashComputed
	StateReplied
	StateKeysDerived
	StateError
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAwaitPeerKey:
		return "await-peer-key"
	case StateSecretComputed:
		return "secret-computed"
	case StateHashComputed:
		return "hash-computed"
	case StateReplied:
		return "replied"
	case StateKeysDerived:
		return "keys-derived"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Signer produces a signature blob over the exchange hash. It may be
// backed by an in-process key or a separate trusted process; the
// handshake calls it synchronously exactly once and never retries.
type Signer interface {
	Sign(rand io.Reader, data []byte) ([]byte, error)
}

// HostKeyProvider resolves the server's host key material by
// negotiated algorithm name.
type HostKeyProvider interface {
	PublicBlob(algorithm string) ([]byte, error)
	Signer(algorithm string) (Signer, error)
}

// Config carries everything one exchange needs. All algorithm names
// arrive already negotiated; the handshake never parses proposals.
type Config struct {
	// Negotiated algorithm names.
	Algorithm            string
	HostKeyAlgorithm     string
	CipherClientToServer string
	CipherServerToClient string
	MACClientToServer    string
	MACServerToClient    string

	// Exchange hash inputs from the surrounding transport. Version
	// strings carry no line terminator; KexInit payloads are the raw
	// bytes each side sent.
	ClientVersion []byte
	ServerVersion []byte
	ClientKexInit []byte
	ServerKexInit []byte

	// HostKeys resolves the server's key pair. Server side only.
	HostKeys HostKeyProvider

	// VerifyHostKey decides whether the presented host key blob is
	// trusted for this connection. Client side only.
	VerifyHostKey func(blob []byte) error

	// VerifySignature checks sig over data against the host key blob.
	// Client side only. Blob and signature formats stay opaque to the
	// handshake.
	VerifySignature func(blob, data, sig []byte) error

	// Send hands an outbound message payload to the transport.
	Send func(payload []byte) error

	// OnComplete receives the pinned session id and the derived keys.
	// The callee owns the key material and wipes it when done.
	OnComplete func(sessionID []byte, keys *KeyMaterial)

	// OnFailed observes the terminal error. The handshake has already
	// scrubbed its secrets when it fires.
	OnFailed func(error)

	Rand   io.Reader
	Logger zerolog.Logger
}

// Handshake drives a single key exchange through its states. It is
// confined to one goroutine; a connection runs at most one exchange at
// a time.
type Handshake struct {
	session  *Session
	cfg      Config
	alg      *Algorithm
	toServer Suite
	toClient Suite

	state        State
	eph          EphemeralKey
	secret       *Secret
	exchangeHash []byte
}

// State reports the current state.
func (hs *Handshake) State() State { return hs.state }

// ExchangeHash returns the computed exchange hash, nil before
// hash-computed.
func (hs *Handshake) ExchangeHash() []byte { return hs.exchangeHash }

// Begin arms the exchange. The client generates its ephemeral key and
// sends the init message; the server just starts waiting for it.
func (hs *Handshake) Begin() error {
	if hs.state != StateNew {
		return hs.fail(fmt.Errorf("%w: Begin in state %s", ErrUnexpectedMessage, hs.state))
	}
	if hs.session.role == RoleServer {
		hs.setState(StateAwaitPeerKey)
		return nil
	}

	eph, err := hs.alg.Curve.GenerateEphemeral(hs.cfg.Rand)
	if err != nil {
		return hs.fail(err)
	}
	hs.eph = eph

	msg := wire.ECDHInit{ClientPublic: eph.PublicEncoded()}
	if err := hs.cfg.Send(msg.Marshal()); err != nil {
		return hs.fail(fmt.Errorf("kex: sending ephemeral key: %w", err))
	}
	hs.setState(StateAwaitPeerKey)
	return nil
}

// HandleMessage consumes the one inbound message this exchange expects.
// Anything else, in any state, is an error.
func (hs *Handshake) HandleMessage(payload []byte) error {
	switch hs.state {
	case StateAwaitPeerKey:
	case StateError:
		return fmt.Errorf("%w: exchange already failed", ErrUnexpectedMessage)
	case StateKeysDerived:
		return hs.failTerminal(fmt.Errorf("%w: exchange already complete", ErrUnexpectedMessage))
	default:
		return hs.fail(fmt.Errorf("%w: message in state %s", ErrUnexpectedMessage, hs.state))
	}

	if len(payload) == 0 {
		return hs.fail(fmt.Errorf("%w: empty payload", ErrMalformedMessage))
	}
	if len(payload) > wire.MaxPayload {
		return hs.fail(fmt.Errorf("%w: %d-byte payload", ErrMalformedMessage, len(payload)))
	}

	if hs.session.role == RoleServer {
		return hs.serveInit(payload)
	}
	return hs.finishExchange(payload)
}

// Abort scrubs a handshake the transport is abandoning, e.g. because
// the connection dropped while waiting for the peer.
func (hs *Handshake) Abort(err error) {
	if hs.state == StateKeysDerived || hs.state == StateError {
		return
	}
	_ = hs.fail(err)
}

// serveInit is the server's whole exchange: one valid init message in,
// one signed reply out, keys derived.
func (hs *Handshake) serveInit(payload []byte) error {
	if payload[0] != wire.MsgKexECDHInit {
		return hs.fail(fmt.Errorf("%w: message %d while awaiting ephemeral key", ErrUnexpectedMessage, payload[0]))
	}
	msg, err := wire.ParseECDHInit(payload)
	if err != nil {
		return hs.fail(fmt.Errorf("%w: %v", ErrMalformedMessage, err))
	}

	// The peer point is untrusted input: validation comes before any
	// arithmetic, and before this side commits its own key material.
	peer, err := hs.alg.Curve.ValidatePeerPoint(msg.ClientPublic)
	if err != nil {
		return hs.fail(err)
	}

	// Resolve the host key before any cryptography so a missing key
	// aborts the exchange with nothing to scrub.
	blob, err := hs.cfg.HostKeys.PublicBlob(hs.cfg.HostKeyAlgorithm)
	if err != nil {
		return hs.fail(fmt.Errorf("%w: %s: %v", ErrHostKeyUnavailable, hs.cfg.HostKeyAlgorithm, err))
	}
	signer, err := hs.cfg.HostKeys.Signer(hs.cfg.HostKeyAlgorithm)
	if err != nil {
		return hs.fail(fmt.Errorf("%w: %s: %v", ErrHostKeyUnavailable, hs.cfg.HostKeyAlgorithm, err))
	}

	eph, err := hs.alg.Curve.GenerateEphemeral(hs.cfg.Rand)
	if err != nil {
		return hs.fail(err)
	}
	hs.eph = eph

	secret, err := eph.SharedSecret(peer)
	if err != nil {
		return hs.fail(err)
	}
	hs.secret = secret
	hs.setState(StateSecretComputed)

	tr := &Transcript{
		ClientVersion:   hs.cfg.ClientVersion,
		ServerVersion:   hs.cfg.ServerVersion,
		ClientKexInit:   hs.cfg.ClientKexInit,
		ServerKexInit:   hs.cfg.ServerKexInit,
		HostKeyBlob:     blob,
		ClientEphemeral: msg.ClientPublic,
		ServerEphemeral: eph.PublicEncoded(),
	}
	hash, err := tr.Hash(hs.alg.Hash, secret)
	if err != nil {
		return hs.fail(err)
	}
	hs.exchangeHash = hash
	hs.setState(StateHashComputed)

	sessionID := hs.session.pin(hash)

	sig, err := signer.Sign(hs.cfg.Rand, hash)
	if err != nil {
		return hs.fail(fmt.Errorf("%w: %v", ErrSigningFailed, err))
	}

	reply := wire.ECDHReply{
		HostKeyBlob:  blob,
		ServerPublic: eph.PublicEncoded(),
		Signature:    sig,
	}
	if err := hs.cfg.Send(reply.Marshal()); err != nil {
		return hs.fail(fmt.Errorf("kex: sending ephemeral reply: %w", err))
	}
	hs.setState(StateReplied)

	return hs.deriveAndFinish(sessionID)
}

// finishExchange is the client's second half: consume the server
// reply, authenticate it, derive keys.
func (hs *Handshake) finishExchange(payload []byte) error {
	if payload[0] != wire.MsgKexECDHReply {
		return hs.fail(fmt.Errorf("%w: message %d while awaiting ephemeral reply", ErrUnexpectedMessage, payload[0]))
	}
	msg, err := wire.ParseECDHReply(payload)
	if err != nil {
		return hs.fail(fmt.Errorf("%w: %v", ErrMalformedMessage, err))
	}

	// Trust the presented host key before doing arithmetic with
	// anything accompanying it.
	if err := hs.cfg.VerifyHostKey(msg.HostKeyBlob); err != nil {
		return hs.fail(fmt.Errorf("%w: %v", ErrHostKeyUntrusted, err))
	}

	peer, err := hs.alg.Curve.ValidatePeerPoint(msg.ServerPublic)
	if err != nil {
		return hs.fail(err)
	}

	secret, err := hs.eph.SharedSecret(peer)
	if err != nil {
		return hs.fail(err)
	}
	hs.secret = secret
	hs.setState(StateSecretComputed)

	tr := &Transcript{
		ClientVersion:   hs.cfg.ClientVersion,
		ServerVersion:   hs.cfg.ServerVersion,
		ClientKexInit:   hs.cfg.ClientKexInit,
		ServerKexInit:   hs.cfg.ServerKexInit,
		HostKeyBlob:     msg.HostKeyBlob,
		ClientEphemeral: hs.eph.PublicEncoded(),
		ServerEphemeral: msg.ServerPublic,
	}
	hash, err := tr.Hash(hs.alg.Hash, secret)
	if err != nil {
		return hs.fail(err)
	}
	hs.exchangeHash = hash
	hs.setState(StateHashComputed)

	if err := hs.cfg.VerifySignature(msg.HostKeyBlob, hash, msg.Signature); err != nil {
		return hs.fail(fmt.Errorf("%w: %v", ErrSignatureRejected, err))
	}

	sessionID := hs.session.pin(hash)
	return hs.deriveAndFinish(sessionID)
}

func (hs *Handshake) deriveAndFinish(sessionID []byte) error {
	keys := DeriveKeys(hs.alg.Hash, hs.secret, hs.exchangeHash, sessionID, hs.toServer, hs.toClient)
	hs.scrub()
	hs.setState(StateKeysDerived)
	hs.session.exchanges++

	hs.cfg.Logger.Info().
		Str("role", hs.session.role.String()).
		Str("algorithm", hs.alg.Name).
		Uint32("exchange", hs.session.exchanges).
		Msg("key exchange complete")

	if hs.cfg.OnComplete != nil {
		hs.cfg.OnComplete(sessionID, keys)
	}
	return nil
}

// fail moves the exchange to its terminal error state, scrubbing
// whatever secret material exists.
func (hs *Handshake) fail(err error) error {
	if hs.state == StateError {
		return err
	}
	hs.state = StateError
	hs.scrub()

	hs.cfg.Logger.Warn().
		Str("role", hs.session.role.String()).
		Str("algorithm", hs.alg.Name).
		Str("severity", SeverityOf(err).String()).
		Err(err).
		Msg("key exchange failed")

	if hs.cfg.OnFailed != nil {
		hs.cfg.OnFailed(err)
	}
	return err
}

// failTerminal reports an error on an already-completed exchange
// without disturbing its state or firing callbacks again.
func (hs *Handshake) failTerminal(err error) error {
	hs.cfg.Logger.Warn().Err(err).Msg("message after completed exchange")
	return err
}

func (hs *Handshake) scrub() {
	if hs.secret != nil {
		hs.secret.Wipe()
		hs.secret = nil
	}
	if hs.eph != nil {
		hs.eph.Destroy()
		hs.eph = nil
	}
}

func (hs *Handshake) setState(next State) {
	hs.cfg.Logger.Debug().
		Str("role", hs.session.role.String()).
		Str("from", hs.state.String()).
		Str("to", next.String()).
		Msg("kex state")
	hs.state = next
}
