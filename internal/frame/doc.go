// Package frame implements the length-prefixed wire format and the stream
// reassembler.
//
// One message on the wire is:
//
//	uint16 length (big-endian, counts all following bytes, excludes itself)
//	uint16 id     (big-endian sequence id)
//	payload       (length - 2 bytes)
//
// The minimum legal length is 2: a message must at least carry its id.
//
// Reassembler extracts complete messages from a stream delivered in arbitrary
// chunks. Feed it whatever a read returned; it emits every complete message
// and keeps trailing partial bytes for the next call. A length field pointing
// past the buffered bytes is treated as an incomplete message, never as
// corruption, so a bogus length stalls that stream by design of the protocol.
package frame
