package transport

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"skiff/internal/hostkey"
	"skiff/internal/kex"
	"skiff/internal/observability"
	"skiff/internal/wire"
)

// DefaultHandshakeTimeout bounds the banner trade plus one full key
// exchange.
const DefaultHandshakeTimeout = 30 * time.Second

// ErrPeerDisconnected is returned when the peer ends the connection
// with a Disconnect message while this side expected something else.
var ErrPeerDisconnected = errors.New("transport: peer disconnected")

// Config carries everything a connection endpoint needs. Zero values
// get working defaults; the role constructors check the rest.
type Config struct {
	// Software is the bare software name and version placed in the
	// banner, e.g. "skiff_0.1.0".
	Software string

	// Preferences are this side's algorithm preference lists. Empty
	// lists fall back to the full supported sets; a server narrows the
	// host key list to the algorithms its key set can sign with.
	Preferences Preferences

	// HostKeys is the server's key set. Server side only.
	HostKeys *hostkey.Set

	// VerifyHostKey decides whether the server's presented key blob is
	// trusted for this connection. Client side only.
	VerifyHostKey func(blob []byte) error

	// HandshakeTimeout bounds each exchange, banners included on the
	// first. Zero means DefaultHandshakeTimeout, negative disables the
	// deadline.
	HandshakeTimeout time.Duration

	Rand    io.Reader
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

func (cfg Config) withDefaults() Config {
	if cfg.Software == "" {
		cfg.Software = "skiff"
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	cfg.Preferences = cfg.Preferences.withDefaults()
	return cfg
}

// hostKeySet adapts a hostkey.Set to the provider interface the key
// exchange resolves server keys through.
type hostKeySet struct{ set *hostkey.Set }

func (h hostKeySet) PublicBlob(algorithm string) ([]byte, error) {
	return h.set.PublicBlob(algorithm)
}

func (h hostKeySet) Signer(algorithm string) (kex.Signer, error) {
	k, err := h.set.Signer(algorithm)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// Conn is one transport connection with a completed key exchange. A
// Conn is confined to a single goroutine; the two ends of a connection
// each run their own.
type Conn struct {
	nc      net.Conn
	cfg     Config
	session *kex.Session
	logger  zerolog.Logger

	clientVersion []byte
	serverVersion []byte

	negotiated  Negotiated
	sessionID   []byte
	keys        *kex.KeyMaterial
	hostKeyBlob []byte

	peerLeft bool
	byeSent  bool
	closed   bool
}

// Client runs the initiating side of the protocol over nc and returns
// once traffic keys are derived. nc stays owned by the caller until
// the returned Conn's Close; on error the caller closes nc itself.
func Client(nc net.Conn, cfg Config) (*Conn, error) {
	if cfg.VerifyHostKey == nil {
		return nil, errors.New("transport: client config needs VerifyHostKey")
	}
	return start(nc, cfg.withDefaults(), kex.RoleClient)
}

// Server runs the answering side of the protocol over nc.
func Server(nc net.Conn, cfg Config) (*Conn, error) {
	if cfg.HostKeys == nil {
		return nil, errors.New("transport: server config needs HostKeys")
	}
	if len(cfg.Preferences.HostKeyAlgorithms) == 0 {
		cfg.Preferences.HostKeyAlgorithms = cfg.HostKeys.Algorithms()
	}
	return start(nc, cfg.withDefaults(), kex.RoleServer)
}

func start(nc net.Conn, cfg Config, role kex.Role) (*Conn, error) {
	c := &Conn{
		nc:      nc,
		cfg:     cfg,
		session: kex.NewSession(role),
		logger:  cfg.Logger,
	}
	if err := c.handshake(); err != nil {
		if cfg.Metrics != nil {
			cfg.Metrics.RecordConnectionFailed()
		}
		return nil, err
	}
	if cfg.Metrics != nil {
		cfg.Metrics.RecordConnectionOpen()
	}
	return c, nil
}

// handshake trades banners and runs the first exchange under one
// deadline. The client speaks first at every step.
func (c *Conn) handshake() error {
	release := c.armDeadline()
	defer release()

	var err error
	if c.session.Role() == kex.RoleClient {
		if c.clientVersion, err = SendBanner(c.nc, c.cfg.Software); err != nil {
			return err
		}
		if c.serverVersion, err = ReadBanner(c.nc); err != nil {
			return err
		}
	} else {
		if c.clientVersion, err = ReadBanner(c.nc); err != nil {
			return err
		}
		if c.serverVersion, err = SendBanner(c.nc, c.cfg.Software); err != nil {
			return err
		}
	}
	c.logger.Debug().
		Str("client_version", string(c.clientVersion)).
		Str("server_version", string(c.serverVersion)).
		Msg("banners traded")

	return c.runExchange(nil)
}

// armDeadline puts the handshake deadline on the socket and returns
// the release that clears it.
func (c *Conn) armDeadline() func() {
	if c.cfg.HandshakeTimeout <= 0 {
		return func() {}
	}
	_ = c.nc.SetDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	return func() { _ = c.nc.SetDeadline(time.Time{}) }
}

// runExchange drives one full exchange for this side's role. peerInit
// is the peer's raw KexInit when the caller already read it (an
// exchange the peer started), nil otherwise.
func (c *Conn) runExchange(peerInit []byte) error {
	started := time.Now()
	var err error
	if c.session.Role() == kex.RoleClient {
		err = c.clientExchange(peerInit)
	} else {
		err = c.serverExchange(peerInit)
	}
	if c.cfg.Metrics != nil {
		alg := c.negotiated.Kex
		if alg == "" {
			alg = "none"
		}
		c.cfg.Metrics.RecordHandshake(alg, err == nil, time.Since(started).Seconds())
	}
	return err
}

func (c *Conn) clientExchange(peerRaw []byte) error {
	own, err := newKexInit(c.cfg.Rand, c.cfg.Preferences)
	if err != nil {
		return c.failExchange(err)
	}
	ownRaw := own.Marshal()
	if err := WritePayload(c.nc, ownRaw); err != nil {
		return err
	}
	if peerRaw == nil {
		if peerRaw, err = c.readMessage(wire.MsgKexInit); err != nil {
			return c.failExchange(err)
		}
	}
	peer, err := wire.ParseKexInit(peerRaw)
	if err != nil {
		return c.failExchange(fmt.Errorf("%w: %v", kex.ErrMalformedMessage, err))
	}
	n, err := c.agree(own, peer, peer)
	if err != nil {
		return c.failExchange(err)
	}

	var (
		sid  []byte
		keys *kex.KeyMaterial
	)
	hs, err := c.session.NewHandshake(kex.Config{
		Algorithm:            n.Kex,
		HostKeyAlgorithm:     n.HostKey,
		CipherClientToServer: n.CipherClientToServer,
		CipherServerToClient: n.CipherServerToClient,
		MACClientToServer:    n.MACClientToServer,
		MACServerToClient:    n.MACServerToClient,
		ClientVersion:        c.clientVersion,
		ServerVersion:        c.serverVersion,
		ClientKexInit:        ownRaw,
		ServerKexInit:        peerRaw,
		VerifyHostKey:        c.verifyHostKey,
		VerifySignature:      hostkey.VerifyBlob,
		Send:                 c.send,
		OnComplete: func(id []byte, km *kex.KeyMaterial) {
			sid, keys = id, km
		},
		Rand:   c.cfg.Rand,
		Logger: c.logger,
	})
	if err != nil {
		return c.failExchange(err)
	}
	if err := hs.Begin(); err != nil {
		return c.failExchange(err)
	}
	if err := c.completeExchange(hs, wire.MsgKexECDHReply); err != nil {
		return err
	}
	if err := c.confirmNewKeys(keys); err != nil {
		return err
	}
	c.install(sid, keys)
	return nil
}

func (c *Conn) serverExchange(peerRaw []byte) error {
	var err error
	if peerRaw == nil {
		if peerRaw, err = c.readMessage(wire.MsgKexInit); err != nil {
			return c.failExchange(err)
		}
	}
	peer, err := wire.ParseKexInit(peerRaw)
	if err != nil {
		return c.failExchange(fmt.Errorf("%w: %v", kex.ErrMalformedMessage, err))
	}
	own, err := newKexInit(c.cfg.Rand, c.cfg.Preferences)
	if err != nil {
		return c.failExchange(err)
	}
	ownRaw := own.Marshal()
	if err := WritePayload(c.nc, ownRaw); err != nil {
		return err
	}
	n, err := c.agree(peer, own, peer)
	if err != nil {
		return c.failExchange(err)
	}

	var (
		sid  []byte
		keys *kex.KeyMaterial
	)
	hs, err := c.session.NewHandshake(kex.Config{
		Algorithm:            n.Kex,
		HostKeyAlgorithm:     n.HostKey,
		CipherClientToServer: n.CipherClientToServer,
		CipherServerToClient: n.CipherServerToClient,
		MACClientToServer:    n.MACClientToServer,
		MACServerToClient:    n.MACServerToClient,
		ClientVersion:        c.clientVersion,
		ServerVersion:        c.serverVersion,
		ClientKexInit:        peerRaw,
		ServerKexInit:        ownRaw,
		HostKeys:             hostKeySet{c.cfg.HostKeys},
		Send:                 c.send,
		OnComplete: func(id []byte, km *kex.KeyMaterial) {
			sid, keys = id, km
		},
		Rand:   c.cfg.Rand,
		Logger: c.logger,
	})
	if err != nil {
		return c.failExchange(err)
	}
	if err := hs.Begin(); err != nil {
		return c.failExchange(err)
	}
	if err := c.completeExchange(hs, wire.MsgKexECDHInit); err != nil {
		return err
	}
	if err := c.confirmNewKeys(keys); err != nil {
		return err
	}
	c.install(sid, keys)
	return nil
}

// agree runs negotiation over the two proposals, records the outcome,
// and discards the peer's optimistic first packet when it guessed the
// outcome wrong.
func (c *Conn) agree(client, server, peer *wire.KexInit) (Negotiated, error) {
	n, err := negotiate(client, server)
	if err != nil {
		return n, err
	}
	c.negotiated = n
	c.logger.Debug().
		Str("kex", n.Kex).
		Str("host_key", n.HostKey).
		Str("cipher_c2s", n.CipherClientToServer).
		Str("cipher_s2c", n.CipherServerToClient).
		Msg("algorithms negotiated")
	if peer.FirstKexPacketFollows && wrongGuess(client, server, n) {
		if _, err := ReadPayload(c.nc); err != nil {
			return n, err
		}
	}
	return n, nil
}

// completeExchange reads the one message the armed handshake expects
// and feeds it in, aborting the handshake on transport errors.
func (c *Conn) completeExchange(hs *kex.Handshake, expect byte) error {
	payload, err := c.readMessage(expect)
	if err != nil {
		hs.Abort(err)
		return c.failExchange(err)
	}
	if err := hs.HandleMessage(payload); err != nil {
		return c.failExchange(err)
	}
	return nil
}

// confirmNewKeys trades the NewKeys pair that commits both sides to
// the fresh keys. The server confirms first, mirroring its reply.
func (c *Conn) confirmNewKeys(keys *kex.KeyMaterial) error {
	fail := func(err error) error {
		keys.Wipe()
		return c.failExchange(err)
	}
	readConfirm := func() error {
		payload, err := c.readMessage(wire.MsgNewKeys)
		if err != nil {
			return err
		}
		if err := wire.ParseNewKeys(payload); err != nil {
			return fmt.Errorf("%w: %v", kex.ErrMalformedMessage, err)
		}
		return nil
	}

	if c.session.Role() == kex.RoleServer {
		if err := WritePayload(c.nc, wire.MarshalNewKeys()); err != nil {
			return fail(err)
		}
		if err := readConfirm(); err != nil {
			return fail(err)
		}
		return nil
	}
	if err := readConfirm(); err != nil {
		return fail(err)
	}
	if err := WritePayload(c.nc, wire.MarshalNewKeys()); err != nil {
		return fail(err)
	}
	return nil
}

// install replaces the connection's keys with the ones from a finished
// exchange.
func (c *Conn) install(sid []byte, keys *kex.KeyMaterial) {
	if c.keys != nil {
		c.keys.Wipe()
	}
	c.sessionID = sid
	c.keys = keys
}

// verifyHostKey runs the caller's trust decision and keeps the blob it
// accepted for later display.
func (c *Conn) verifyHostKey(blob []byte) error {
	if err := c.cfg.VerifyHostKey(blob); err != nil {
		return err
	}
	c.hostKeyBlob = append([]byte(nil), blob...)
	return nil
}

func (c *Conn) send(payload []byte) error {
	return WritePayload(c.nc, payload)
}

// readMessage reads one frame and checks its message number. A
// Disconnect from the peer surfaces as ErrPeerDisconnected.
func (c *Conn) readMessage(expect byte) ([]byte, error) {
	payload, err := ReadPayload(c.nc)
	if err != nil {
		return nil, err
	}
	if payload[0] == wire.MsgDisconnect {
		c.peerLeft = true
		d, perr := wire.ParseDisconnect(payload)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", kex.ErrMalformedMessage, perr)
		}
		return nil, fmt.Errorf("%w: %s (reason %d)", ErrPeerDisconnected, d.Description, d.Reason)
	}
	if payload[0] != expect {
		return nil, fmt.Errorf("%w: message %d while awaiting %d", kex.ErrUnexpectedMessage, payload[0], expect)
	}
	return payload, nil
}

// failExchange maps a failed exchange onto the connection: disconnect-
// class failures notify the peer before the caller drops the link,
// everything else passes through untouched.
func (c *Conn) failExchange(err error) error {
	if kex.SeverityOf(err) == kex.SeverityDisconnect && !c.peerLeft {
		reason := kex.DisconnectReason(err)
		d := wire.Disconnect{Reason: reason, Description: disconnectDescription(reason)}
		if werr := WritePayload(c.nc, d.Marshal()); werr == nil {
			c.byeSent = true
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RecordDisconnect(reason)
			}
			c.logger.Debug().Uint32("reason", reason).Msg("disconnect sent")
		}
	}
	return err
}

func disconnectDescription(reason uint32) string {
	if reason == wire.DisconnectKeyExchangeFailed {
		return "key exchange failed"
	}
	return "protocol error"
}

// Serve consumes post-exchange traffic. A re-exchange the peer starts
// runs in place; a clean goodbye or EOF ends the loop with nil.
// Everything else is a protocol error, the record layer above this
// transport notwithstanding.
func (c *Conn) Serve() error {
	for {
		payload, err := ReadPayload(c.nc)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		switch payload[0] {
		case wire.MsgDisconnect:
			d, perr := wire.ParseDisconnect(payload)
			if perr != nil {
				return c.failExchange(fmt.Errorf("%w: %v", kex.ErrMalformedMessage, perr))
			}
			c.peerLeft = true
			c.logger.Info().
				Uint32("reason", d.Reason).
				Str("description", d.Description).
				Msg("peer closed the connection")
			return nil
		case wire.MsgKexInit:
			release := c.armDeadline()
			err := c.runExchange(payload)
			release()
			if err != nil {
				return err
			}
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RecordRekey()
			}
		default:
			return c.failExchange(fmt.Errorf("%w: message %d between exchanges", kex.ErrUnexpectedMessage, payload[0]))
		}
	}
}

// Rekey runs a fresh exchange on a live client connection. The session
// id stays pinned; the traffic keys are replaced.
func (c *Conn) Rekey() error {
	if c.session.Role() != kex.RoleClient {
		return errors.New("transport: the server waits for the client to re-key")
	}
	release := c.armDeadline()
	defer release()
	if err := c.runExchange(nil); err != nil {
		return err
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordRekey()
	}
	return nil
}

// Close wipes the traffic keys, says goodbye when the peer has not
// already left, and closes the underlying connection.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.keys != nil {
		c.keys.Wipe()
		c.keys = nil
	}
	if !c.peerLeft && !c.byeSent {
		d := wire.Disconnect{Reason: wire.DisconnectByApplication, Description: "closed by application"}
		_ = c.nc.SetDeadline(time.Now().Add(time.Second))
		if err := WritePayload(c.nc, d.Marshal()); err == nil {
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RecordDisconnect(wire.DisconnectByApplication)
			}
		}
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordConnectionClose()
	}
	return c.nc.Close()
}

// SessionID returns the identifier pinned by the first exchange.
func (c *Conn) SessionID() []byte { return c.sessionID }

// Keys exposes the traffic keys of the latest exchange. The Conn keeps
// ownership and wipes them on Close.
func (c *Conn) Keys() *kex.KeyMaterial { return c.keys }

// Negotiated reports the algorithm names agreed in the latest exchange.
func (c *Conn) Negotiated() Negotiated { return c.negotiated }

// Exchanges returns how many exchanges have completed on this
// connection.
func (c *Conn) Exchanges() uint32 { return c.session.Exchanges() }

// HostKeyBlob returns the server key blob the client accepted, nil on
// the server side.
func (c *Conn) HostKeyBlob() []byte { return c.hostKeyBlob }

// ClientVersion returns the client banner line, terminator stripped.
func (c *Conn) ClientVersion() []byte { return c.clientVersion }

// ServerVersion returns the server banner line, terminator stripped.
func (c *Conn) ServerVersion() []byte { return c.serverVersion }
