// Package logger provides a thread-safe leveled logger.
//
// Log lines are written to a single io.Writer with a timestamp, level and
// optional connection tag:
//
//	[2026-01-02 15:04:05.000] [INFO] [conn-3] connection closed
//
// The default logger writes to standard error, because standard output is
// reserved for RTT samples (one integer per line). The minimum level is
// derived from the -v flag count: none is Warn, -v is Info, -vv is Debug.
package logger
