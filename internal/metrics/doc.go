// Package metrics collects traffic counters and RTT distribution for a run.
//
// Counters are lock-free atomics updated from every connection's goroutines.
// RTT samples feed an HDR histogram in microseconds, from which the snapshot
// reports p50/p90/p99 and the maximum. Snapshot() is safe to call while the
// run is in progress; the stats server polls it once per second.
package metrics
