package store

// TrustStore answers whether a host's presented key is trusted and
// records keys the user chose to trust.
type TrustStore interface {
	Verify(host string, blob []byte) error
	Add(host string, blob []byte) error
}

// Compile-time assertion that KnownHostsFileStore implements TrustStore.
var _ TrustStore = (*KnownHostsFileStore)(nil)
