package pool

import (
	"context"
	"fmt"
	"net"
	"sync"

	"tcpflood/internal/logger"
	"tcpflood/internal/rtt"

	"golang.org/x/time/rate"
)

// DialFunc はコネクション確立関数
// テストではここを差し替えて失敗を注入する
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// Config はランプアップの設定
type Config struct {
	Addr      string   // 接続先アドレス（host:port）
	Count     int      // 目標コネクション数
	PerSecond int      // 新規コネクション確立レート（本/秒）
	Window    int      // コネクションあたりのRTTタイムスタンプ保持数
	Dial      DialFunc // nilで通常のTCPダイヤル
}

// Conn はプールが所有する1本のコネクション
// nextSeq はそのコネクションのディスパッチゴルーチンだけが触る
type Conn struct {
	id      int
	nc      net.Conn
	ring    *rtt.Ring
	nextSeq uint16

	closeOnce sync.Once
	closeErr  error
}

// ID はログ用のコネクション識別子を返す
func (c *Conn) ID() string {
	return fmt.Sprintf("conn-%d", c.id)
}

// NextSeq は現在のシーケンスIDを返し、次に進める
// uint16のため65536で黙ってラップする
func (c *Conn) NextSeq() uint16 {
	seq := c.nextSeq
	c.nextSeq++
	return seq
}

// Ring は送信タイムスタンプのRingを返す
func (c *Conn) Ring() *rtt.Ring {
	return c.ring
}

// Read はコネクションから読み込む
func (c *Conn) Read(p []byte) (int, error) {
	return c.nc.Read(p)
}

// Write はコネクションへ書き込む
func (c *Conn) Write(p []byte) (int, error) {
	return c.nc.Write(p)
}

// Close はコネクションを閉じる。複数回呼んでも安全
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

// Pool は確立済みコネクションの集合
type Pool struct {
	conns []*Conn
}

// Open は目標数のコネクションを順次確立する
// 接続試行は PerSecond 本/秒に律速される。確立に失敗した時点で
// ランプアップを打ち切り、それまでに成功した分だけを返す
func Open(ctx context.Context, cfg Config) *Pool {
	dial := cfg.Dial
	if dial == nil {
		var d net.Dialer
		dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		}
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.PerSecond), 1)
	p := &Pool{conns: make([]*Conn, 0, cfg.Count)}

	for i := 0; i < cfg.Count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			logger.Info("", "Ramp-up interrupted after %d connections: %v", len(p.conns), err)
			return p
		}

		nc, err := dial(ctx, cfg.Addr)
		if err != nil {
			logger.Error("", "Failed to open connection %d: %v", i, err)
			return p
		}

		p.conns = append(p.conns, &Conn{
			id:   i,
			nc:   nc,
			ring: rtt.NewRing(cfg.Window),
		})

		// おおよそ1秒ごとの進捗出力
		if cfg.PerSecond > 0 && i%cfg.PerSecond == 0 {
			logger.Debug("", "Opened %d connections so far...", i)
		}
	}

	logger.Info("", "Opened %d connections to %s", len(p.conns), cfg.Addr)
	return p
}

// Conns はプール内のコネクションを返す
func (p *Pool) Conns() []*Conn {
	return p.conns
}

// Size は確立済みコネクション数を返す
func (p *Pool) Size() int {
	return len(p.conns)
}

// CloseAll は確立した逆順で全コネクションを閉じる
// ランプアップが途中で失敗していても安全に呼べる
func (p *Pool) CloseAll() {
	for i := len(p.conns) - 1; i >= 0; i-- {
		_ = p.conns[i].Close()
	}
}
