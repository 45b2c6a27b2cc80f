// Package wire encodes and decodes the binary forms used on the skiff
// transport: uint32s, length-prefixed strings, canonical mpints and
// comma-separated name-lists, plus the key-exchange message payloads
// built from them.
//
// A Builder appends fields to a growing payload; a Reader consumes them
// and can assert that a payload was consumed exactly. Mpints are always
// written canonically: no leading zero octets, with a single 0x00
// prepended when the leading octet would otherwise set the sign bit.
package wire
