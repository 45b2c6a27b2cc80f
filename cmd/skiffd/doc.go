// Package main runs skiffd, the answering side of the skiff transport
// key exchange.
//
// skiffd listens on a TCP address, runs one key exchange per incoming
// connection, and then serves the post-exchange loop: client-driven
// re-exchanges and disconnect notices. Host keys come from the
// encrypted store under --home, unlocked by the SKIFFD_PASSPHRASE
// environment variable; generate them with `skiff keygen`.
//
// Behaviour
//
//   - Each connection runs on its own goroutine with a fresh conn_id
//     logging context.
//   - Handshake failures are classified by severity: disconnect-class
//     errors notify the peer with a reasoned DISCONNECT, connection
//     errors just drop the link, and a cryptographic failure stops the
//     whole daemon.
//   - With --metrics, Prometheus instruments are served on /metrics:
//     handshake counts and durations, active connections, disconnect
//     reasons, re-exchange totals.
//
// The record layer above the exchange is out of scope; skiffd speaks
// the banner, negotiation, exchange and NEWKEYS messages only.
package main
