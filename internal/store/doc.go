// Package store provides file-based persistence for skiff's key
// material and trust decisions.
//
// It contains concrete implementations serialising data on disk. All
// methods are concurrency-safe via internal locking. Stored files
// typically live under the daemon's configured state directory.
//
// The package includes stores for:
//   - Encrypted host keys with certificate companions (HostKeyFileStore)
//   - Known host keys for client trust decisions (KnownHostsFileStore)
package store
