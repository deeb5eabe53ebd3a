// Package rtt correlates responses with send times to produce round-trip
// samples.
//
// Ring is a fixed-capacity circular buffer of send timestamps, one per
// connection, indexed by the wrapping sequence id modulo the capacity. The
// capacity bounds memory per connection and doubles as the number of
// distinguishable in-flight queries: once more queries than slots are
// unanswered, the oldest slot is silently overwritten and a late response for
// it is attributed to the newer send time (an under-estimated RTT). This is a
// documented capacity contract, not an error; the tool's main use case is
// many connections each sending at a very low rate.
//
// Elapsed uses saturating subtraction: a response observed at or before its
// recorded send time reports zero, never a negative duration.
package rtt
