// Package commands defines the skiff CLI and wires dependencies for
// subcommands.
//
// # Commands
//
//   - keygen       Generate a host key and store it encrypted
//   - fingerprint  Print fingerprints of the stored host keys
//   - dial         Run a key exchange against a skiffd server
//
// # Implementation
//
// The root command resolves the config directory and builds the
// dependency graph (stores, logging, transport configuration) before
// any subcommand runs, so handlers share one app wire. Host keys rest
// in a passphrase-encrypted store under --home; server trust lives in
// a known_hosts file beside them, first use prompted on the terminal.
package commands
