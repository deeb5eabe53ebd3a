// Package target resolves the server under test and probes reachability
// before the ramp-up commits to opening the full connection set.
package target

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"tcpflood/internal/logger"
)

// Resolve はホスト名を解決し、最初に接続できたアドレスを返す
// 候補アドレスを順に試し、1本接続して即閉じることで到達性を確認する
func Resolve(ctx context.Context, host string, port int) (string, error) {
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", host, err)
	}

	var dialer net.Dialer
	portStr := strconv.Itoa(port)

	for _, a := range addrs {
		addr := net.JoinHostPort(a, portStr)
		logger.Info("", "Trying to connect to %s...", addr)

		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			logger.Info("", "Failed to connect to %s: %v", addr, err)
			continue
		}
		_ = conn.Close()
		logger.Info("", "Success!")
		return addr, nil
	}

	return "", fmt.Errorf("could not connect to %s port %d", host, port)
}
