// Package runner wires the run together: resolve the target, raise resource
// limits, ramp up the pool, schedule dispatch, stop after the configured
// duration and tear everything down in reverse order.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"tcpflood/internal/config"
	"tcpflood/internal/fdlimit"
	"tcpflood/internal/frame"
	"tcpflood/internal/logger"
	"tcpflood/internal/metrics"
	"tcpflood/internal/pool"
	"tcpflood/internal/rtt"
	"tcpflood/internal/scheduler"
	"tcpflood/internal/stats"
	"tcpflood/internal/target"
)

// Result は実行結果
type Result struct {
	Target    string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Requested int // 要求したコネクション数
	Opened    int // 確立できたコネクション数

	Sent            uint64
	Received        uint64
	TransportErrors uint64
	SendRate        float64

	P50    time.Duration
	P90    time.Duration
	P99    time.Duration
	MaxRTT time.Duration
}

// Runner は1回の実行を管理する
type Runner struct {
	cfg       config.Config
	sampleOut io.Writer

	mu      sync.Mutex
	running bool
}

// New は新しいRunnerを作成する
func New(cfg config.Config) *Runner {
	return &Runner{
		cfg:       cfg,
		sampleOut: os.Stdout,
	}
}

// SetSampleOutput はRTTサンプルの出力先を差し替える（テスト用）
func (r *Runner) SetSampleOutput(w io.Writer) {
	r.sampleOut = w
}

// Run は実行を開始し、時間切れまたはコンテキスト取り消しまでブロックする
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, fmt.Errorf("run is already in progress")
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	result := &Result{
		Target:    fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port),
		Requested: r.cfg.Connections,
		StartTime: time.Now(),
	}

	// ファイルディスクリプタ上限はベストエフォートで引き上げる
	limit, err := fdlimit.Raise()
	if err != nil {
		logger.Warn("", "Could not raise open file limit: %v", err)
	} else {
		logger.Info("", "Maximum number of open files: %d", limit)
	}
	if limit > 0 && uint64(r.cfg.Connections) > limit {
		logger.Warn("", "Requested %d connections but the open file limit is %d", r.cfg.Connections, limit)
	}

	addr, err := target.Resolve(ctx, r.cfg.Host, r.cfg.Port)
	if err != nil {
		return nil, err
	}
	result.Target = addr

	m := metrics.New()

	// 統計サーバーは任意
	if r.cfg.StatsAddr != "" {
		statsServer := stats.NewServer(r.cfg.StatsAddr, m)
		go func() {
			if err := statsServer.Start(ctx); err != nil {
				logger.Warn("", "Stats server stopped: %v", err)
			}
		}()
	}

	p := pool.Open(ctx, pool.Config{
		Addr:      addr,
		Count:     r.cfg.Connections,
		PerSecond: r.cfg.NewConnRate,
		Window:    r.cfg.Window,
	})
	if p.Size() == 0 {
		return nil, fmt.Errorf("could not open any connection to %s", addr)
	}
	result.Opened = p.Size()

	var samples *rtt.SampleWriter
	if r.cfg.PrintRTT {
		samples = rtt.NewSampleWriter(r.sampleOut)
	}

	sched := scheduler.New(p.Conns(), scheduler.Config{
		Interval: r.cfg.Interval(),
		Seed:     r.cfg.Seed,
		Payload:  frame.PrototypeQuery(),
		Metrics:  m,
		Samples:  samples,
	})

	runCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Duration)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	logger.Info("", "Scheduling sending tasks with random offsets...")
	sched.Start(runCtx)

	<-runCtx.Done()

	// タスク取り消し、コネクションクローズ、プール解放の順に畳む
	sched.Stop()
	p.CloseAll()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	snapshot := m.Snapshot()
	result.Sent = snapshot.Sent
	result.Received = snapshot.Received
	result.TransportErrors = snapshot.TransportErrors
	result.SendRate = snapshot.SendRate
	result.P50 = snapshot.P50
	result.P90 = snapshot.P90
	result.P99 = snapshot.P99
	result.MaxRTT = snapshot.MaxRTT

	return result, nil
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	return fmt.Sprintf(`
================================================================================
                         RUN REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v

CONNECTIONS
-----------
  Requested:      %d
  Opened:         %d

TRAFFIC
-------
  Queries Sent:       %d
  Responses Received: %d
  Transport Errors:   %d
  Achieved Rate:      %.1f queries/s

ROUND-TRIP TIME
---------------
  p50:  %v
  p90:  %v
  p99:  %v
  max:  %v

================================================================================`,
		r.Target,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Requested,
		r.Opened,
		r.Sent,
		r.Received,
		r.TransportErrors,
		r.SendRate,
		r.P50.Round(time.Microsecond),
		r.P90.Round(time.Microsecond),
		r.P99.Round(time.Microsecond),
		r.MaxRTT.Round(time.Microsecond),
	)
}
