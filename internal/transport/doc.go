// Package transport runs the unencrypted outer protocol around a key
// exchange: version banners, length-framed messages, algorithm
// negotiation and the NEWKEYS switch, over any net.Conn.
//
// Message flow is strictly sequenced, the client speaking first in each
// phase: banners, then KEXINIT in both directions, then the two
// exchange messages, then NEWKEYS from the server followed by NEWKEYS
// from the client. The client may later start a re-exchange with a
// fresh KEXINIT, which a serving Conn answers; the record layer that
// would encrypt subsequent traffic is out of scope here.
package transport
