// Package pool performs the staged ramp-up of the connection set.
//
// Open dials the target sequentially, pacing attempts with a rate limiter so
// the server is not hit by a connect storm. The first failed attempt stops
// the ramp-up; whatever subset connected so far is returned. The caller must
// treat an empty pool as fatal — any non-zero count is usable.
//
// Each Conn carries the per-connection mutable state of the run: the wrapping
// 16-bit sequence counter (owned by the dispatch goroutine) and the send
// timestamp ring. CloseAll releases connections in reverse order of
// acquisition and is safe after a partial ramp-up.
package pool
