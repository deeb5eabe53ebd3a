package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"tcpflood/internal/frame"
	"tcpflood/internal/logger"
	"tcpflood/internal/metrics"
	"tcpflood/internal/pool"
	"tcpflood/internal/rtt"
)

// Config はスケジューラの設定
type Config struct {
	Interval time.Duration      // コネクションあたりのディスパッチ間隔
	Seed     int64              // 位相オフセット乱数のシード
	Payload  []byte             // 毎回送る固定ペイロード
	Metrics  *metrics.Metrics   // 統計（必須）
	Samples  *rtt.SampleWriter  // RTTサンプル出力（nilで無効）
}

// Scheduler は全コネクションの周期送信と受信処理を管理する
type Scheduler struct {
	cfg     Config
	conns   []*pool.Conn
	offsets []time.Duration

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New は新しいSchedulerを作成する
// 各コネクションの初期オフセットはここで決まる。シードが同じなら
// オフセット列も同じになる
func New(conns []*pool.Conn, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Microsecond
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	offsets := make([]time.Duration, len(conns))
	for i := range offsets {
		offsets[i] = time.Duration(rng.Int63n(int64(cfg.Interval)))
	}

	return &Scheduler{
		cfg:     cfg,
		conns:   conns,
		offsets: offsets,
	}
}

// Offsets は各コネクションの初期オフセットを返す
func (s *Scheduler) Offsets() []time.Duration {
	return s.offsets
}

// Start は全コネクションの送信タスクと受信ループを起動する
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	for i, c := range s.conns {
		s.wg.Add(2)
		go s.dispatchLoop(c, s.offsets[i])
		go s.readLoop(c)
	}

	logger.Info("", "Scheduler started: %d connections, interval %v", len(s.conns), s.cfg.Interval)
}

// dispatchLoop は1コネクションの二段階スケジュール
// 第一段: オフセット分だけ待つワンショット。発火時に最初の送信を行い、
// 第二段の周期タイマーを設置する
func (s *Scheduler) dispatchLoop(c *pool.Conn, offset time.Duration) {
	defer s.wg.Done()

	timer := time.NewTimer(offset)
	select {
	case <-s.ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	if !s.dispatch(c) {
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if !s.dispatch(c) {
				return
			}
		}
	}
}

// dispatch は1クエリを送信する
// シーケンスIDの採番、送信時刻の記録、フレーム書き込みをこのコネクションの
// ディスパッチゴルーチンだけが行う
func (s *Scheduler) dispatch(c *pool.Conn) bool {
	seq := c.NextSeq()
	c.Ring().Record(seq, time.Now())

	if _, err := c.Write(frame.Encode(seq, s.cfg.Payload)); err != nil {
		if s.ctx.Err() == nil {
			logger.Error(c.ID(), "write failed, stopping connection: %v", err)
			s.cfg.Metrics.RecordTransportError()
		}
		_ = c.Close()
		return false
	}

	s.cfg.Metrics.RecordSent()
	logger.Debug(c.ID(), "dispatched query %d", seq)
	return true
}

// readLoop は1コネクションの受信処理
// 届いたバイト列を再構築し、完全な応答ごとにRTTを計測する
func (s *Scheduler) readLoop(c *pool.Conn) {
	defer s.wg.Done()

	r := frame.NewReassembler()
	buf := make([]byte, 64<<10)

	for {
		n, err := c.Read(buf)
		if n > 0 {
			r.Feed(buf[:n], func(m frame.Message) {
				elapsed := c.Ring().Elapsed(m.ID, time.Now())
				s.cfg.Metrics.RecordResponse(elapsed)
				s.cfg.Samples.Emit(elapsed)
				logger.Debug(c.ID(), "response for query %d after %v", m.ID, elapsed)
			})
		}
		if err != nil {
			if s.ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				logger.Error(c.ID(), "read failed, stopping connection: %v", err)
				s.cfg.Metrics.RecordTransportError()
			}
			_ = c.Close()
			return
		}
	}
}

// Stop は全タスクを取り消し、コネクションを確立の逆順で閉じて
// ゴルーチンの終了を待つ
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.cancel()
	for i := len(s.conns) - 1; i >= 0; i-- {
		_ = s.conns[i].Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	logger.Info("", "Scheduler stopped")
}
