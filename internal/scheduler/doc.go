// Package scheduler drives periodic query dispatch over the connection pool
// and correlates responses into RTT samples.
//
// Every connection fires at the same interval (connections/rate seconds) but
// with its own random initial offset in [0, interval), drawn from a seeded
// source so runs are reproducible. Without the offsets, connections opened in
// sequence would all send at the same wall-clock instants and the aggregate
// traffic would be bursty instead of a smooth rate.
//
// Scheduling per connection is two-phase: a one-shot timer at the offset
// performs the first dispatch and installs the periodic ticker. A dispatch —
// take the next wrapping sequence id, record the send timestamp in the
// connection's ring, write the frame — is executed only by that connection's
// dispatch goroutine, so it is atomic with respect to the schedule.
//
// A transport error on one connection stops that connection's dispatch and
// read activity only; there is no reconnection.
package scheduler
