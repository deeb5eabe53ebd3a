package scheduler

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"tcpflood/internal/echo"
	"tcpflood/internal/frame"
	"tcpflood/internal/metrics"
	"tcpflood/internal/pool"
	"tcpflood/internal/rtt"
)

func openAgainst(t *testing.T, addr string, count int) *pool.Pool {
	t.Helper()
	p := pool.Open(context.Background(), pool.Config{
		Addr:      addr,
		Count:     count,
		PerSecond: 100000,
		Window:    rtt.DefaultWindow,
	})
	if p.Size() != count {
		t.Fatalf("expected %d connections, got %d", count, p.Size())
	}
	return p
}

func TestOffsetsWithinIntervalAndDeterministic(t *testing.T) {
	s := echo.New(echo.Config{})
	if err := s.Start(); err != nil {
		t.Fatalf("echo server: %v", err)
	}
	defer s.Close()

	p := openAgainst(t, s.Addr(), 8)
	defer p.CloseAll()

	interval := 20 * time.Millisecond
	cfg := Config{
		Interval: interval,
		Seed:     42,
		Payload:  frame.PrototypeQuery(),
		Metrics:  metrics.New(),
	}

	first := New(p.Conns(), cfg)
	for i, off := range first.Offsets() {
		if off < 0 || off >= interval {
			t.Errorf("offset %d = %v, want in [0, %v)", i, off, interval)
		}
	}

	second := New(p.Conns(), cfg)
	for i := range first.Offsets() {
		if first.Offsets()[i] != second.Offsets()[i] {
			t.Errorf("offset %d differs across runs with the same seed", i)
		}
	}

	cfg.Seed = 43
	other := New(p.Conns(), cfg)
	same := true
	for i := range first.Offsets() {
		if first.Offsets()[i] != other.Offsets()[i] {
			same = false
		}
	}
	if same {
		t.Error("expected different offsets for a different seed")
	}
}

func TestRateConvergence(t *testing.T) {
	s := echo.New(echo.Config{})
	if err := s.Start(); err != nil {
		t.Fatalf("echo server: %v", err)
	}
	defer s.Close()

	p := openAgainst(t, s.Addr(), 2)

	m := metrics.New()
	interval := 10 * time.Millisecond // 2 connections at 10ms each: 200 queries/s
	sched := New(p.Conns(), Config{
		Interval: interval,
		Seed:     42,
		Payload:  frame.PrototypeQuery(),
		Metrics:  m,
	})

	window := 500 * time.Millisecond
	sched.Start(context.Background())
	time.Sleep(window)
	sched.Stop()

	sent := m.Sent()
	// 2 conns * 500ms / 10ms = ~100 dispatches; allow wide slack for
	// scheduling jitter on loaded test machines
	if sent < 60 || sent > 140 {
		t.Errorf("sent %d queries in %v, expected around 100", sent, window)
	}
	if m.Received() == 0 {
		t.Error("expected at least one echoed response")
	}
}

func TestRoundTripSamples(t *testing.T) {
	delay := 30 * time.Millisecond
	s := echo.New(echo.Config{Delay: delay})
	if err := s.Start(); err != nil {
		t.Fatalf("echo server: %v", err)
	}
	defer s.Close()

	p := openAgainst(t, s.Addr(), 2)

	out := &bytes.Buffer{}
	m := metrics.New()
	sched := New(p.Conns(), Config{
		Interval: 50 * time.Millisecond,
		Seed:     42,
		Payload:  frame.PrototypeQuery(),
		Metrics:  m,
		Samples:  rtt.NewSampleWriter(out),
	})

	sched.Start(context.Background())
	time.Sleep(300 * time.Millisecond)
	sched.Stop()

	if m.Received() == 0 {
		t.Fatal("no responses received")
	}

	scanner := bufio.NewScanner(out)
	lines := 0
	for scanner.Scan() {
		lines++
		us, err := strconv.ParseInt(strings.TrimSpace(scanner.Text()), 10, 64)
		if err != nil {
			t.Fatalf("sample line %d is not an integer: %q", lines, scanner.Text())
		}
		got := time.Duration(us) * time.Microsecond
		if got < delay {
			t.Errorf("sample %d = %v, below the server delay %v", lines, got, delay)
		}
		if got > delay+200*time.Millisecond {
			t.Errorf("sample %d = %v, implausibly large", lines, got)
		}
	}
	if lines == 0 {
		t.Fatal("expected at least one RTT sample line")
	}
	if uint64(lines) != m.Received() {
		t.Errorf("expected one sample per response: %d lines, %d responses", lines, m.Received())
	}
}

func TestDisabledSamplesStillConsumeResponses(t *testing.T) {
	s := echo.New(echo.Config{})
	if err := s.Start(); err != nil {
		t.Fatalf("echo server: %v", err)
	}
	defer s.Close()

	p := openAgainst(t, s.Addr(), 1)

	m := metrics.New()
	sched := New(p.Conns(), Config{
		Interval: 10 * time.Millisecond,
		Seed:     42,
		Payload:  frame.PrototypeQuery(),
		Metrics:  m,
		Samples:  nil, // RTT output disabled
	})

	sched.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	sched.Stop()

	if m.Received() == 0 {
		t.Error("responses must still be consumed with RTT output disabled")
	}
}

func TestFragmentedResponsesReassembled(t *testing.T) {
	s := echo.New(echo.Config{ChunkSize: 2})
	if err := s.Start(); err != nil {
		t.Fatalf("echo server: %v", err)
	}
	defer s.Close()

	p := openAgainst(t, s.Addr(), 1)

	m := metrics.New()
	sched := New(p.Conns(), Config{
		Interval: 40 * time.Millisecond,
		Seed:     42,
		Payload:  frame.PrototypeQuery(),
		Metrics:  m,
	})

	sched.Start(context.Background())
	time.Sleep(250 * time.Millisecond)
	sched.Stop()

	if m.Received() == 0 {
		t.Error("expected responses despite fragmented delivery")
	}
}

func TestTransportErrorStopsOnlyThatConnection(t *testing.T) {
	s := echo.New(echo.Config{})
	if err := s.Start(); err != nil {
		t.Fatalf("echo server: %v", err)
	}
	defer s.Close()

	p := openAgainst(t, s.Addr(), 2)

	m := metrics.New()
	sched := New(p.Conns(), Config{
		Interval: 10 * time.Millisecond,
		Seed:     42,
		Payload:  frame.PrototypeQuery(),
		Metrics:  m,
	})

	sched.Start(context.Background())
	time.Sleep(50 * time.Millisecond)

	// Kill one connection out from under the scheduler
	_ = p.Conns()[0].Close()
	before := m.Sent()
	time.Sleep(100 * time.Millisecond)
	after := m.Sent()

	if after <= before {
		t.Error("remaining connection should keep dispatching after a peer fails")
	}

	sched.Stop()
}

func TestStopIdempotent(t *testing.T) {
	s := echo.New(echo.Config{})
	if err := s.Start(); err != nil {
		t.Fatalf("echo server: %v", err)
	}
	defer s.Close()

	p := openAgainst(t, s.Addr(), 1)

	sched := New(p.Conns(), Config{
		Interval: 10 * time.Millisecond,
		Seed:     42,
		Payload:  frame.PrototypeQuery(),
		Metrics:  metrics.New(),
	})

	sched.Stop() // before Start: no-op
	sched.Start(context.Background())
	sched.Stop()
	sched.Stop() // double stop: no-op
}
