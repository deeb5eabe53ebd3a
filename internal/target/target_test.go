package target

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
)

func TestResolveReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port

	addr, err := Resolve(context.Background(), "127.0.0.1", port)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !strings.HasSuffix(addr, ":"+strconv.Itoa(port)) {
		t.Errorf("unexpected address: %s", addr)
	}
}

func TestResolveUnreachable(t *testing.T) {
	// Grab a free port and close it again so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	if _, err := Resolve(context.Background(), "127.0.0.1", port); err == nil {
		t.Error("expected error for unreachable port")
	}
}

func TestResolveUnknownHost(t *testing.T) {
	if _, err := Resolve(context.Background(), "host.invalid", 53); err == nil {
		t.Error("expected error for unresolvable host")
	}
}
