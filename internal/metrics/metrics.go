package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/codahale/hdrhistogram"
)

// ヒストグラムの値域はマイクロ秒単位で1µs〜10分
const (
	histMinValue = 1
	histMaxValue = int64(10 * time.Minute / time.Microsecond)
	histSigFigs  = 3
)

// Metrics は1回の実行のトラフィック統計を収集する
type Metrics struct {
	sent      atomic.Uint64
	received  atomic.Uint64
	transport atomic.Uint64

	mu        sync.Mutex
	startTime time.Time
	hist      *hdrhistogram.Histogram
}

// New は新しいMetricsを作成する
func New() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		hist:      hdrhistogram.New(histMinValue, histMaxValue, histSigFigs),
	}
}

// RecordSent は1クエリの送信を記録する
func (m *Metrics) RecordSent() {
	m.sent.Add(1)
}

// RecordResponse は1応答の受信とそのRTTを記録する
func (m *Metrics) RecordResponse(rtt time.Duration) {
	m.received.Add(1)

	m.mu.Lock()
	_ = m.hist.RecordValue(rtt.Microseconds())
	m.mu.Unlock()
}

// RecordTransportError はコネクション上の致命的なエラーを記録する
func (m *Metrics) RecordTransportError() {
	m.transport.Add(1)
}

// Sent は送信クエリ数を返す
func (m *Metrics) Sent() uint64 {
	return m.sent.Load()
}

// Received は受信応答数を返す
func (m *Metrics) Received() uint64 {
	return m.received.Load()
}

// TransportErrors はトランスポートエラー数を返す
func (m *Metrics) TransportErrors() uint64 {
	return m.transport.Load()
}

// SendRate は開始からの平均送信レート（クエリ/秒）を返す
func (m *Metrics) SendRate() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.sent.Load()) / elapsed
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Sent            uint64
	Received        uint64
	TransportErrors uint64
	SendRate        float64
	P50             time.Duration
	P90             time.Duration
	P99             time.Duration
	MaxRTT          time.Duration
	Elapsed         time.Duration
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Sent:            m.sent.Load(),
		Received:        m.received.Load(),
		TransportErrors: m.transport.Load(),
		SendRate:        m.SendRate(),
		Elapsed:         time.Since(m.startTime),
	}

	m.mu.Lock()
	if m.hist.TotalCount() > 0 {
		s.P50 = time.Duration(m.hist.ValueAtQuantile(50)) * time.Microsecond
		s.P90 = time.Duration(m.hist.ValueAtQuantile(90)) * time.Microsecond
		s.P99 = time.Duration(m.hist.ValueAtQuantile(99)) * time.Microsecond
		s.MaxRTT = time.Duration(m.hist.Max()) * time.Microsecond
	}
	m.mu.Unlock()

	return s
}
