// Package echo provides an in-process stub server speaking the
// length-prefixed protocol, used by tests.
//
// The server reassembles incoming frames and echoes each one back with the
// same id after a fixed delay, so round-trip measurements against it have a
// known lower bound. Responses can optionally be written in small chunks to
// exercise stream reassembly on the client side.
package echo
