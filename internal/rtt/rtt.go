package rtt

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultWindow は1コネクションあたりの送信タイムスタンプ保持数
// 低レートの大量コネクションが主用途のため小さい値で足りる
const DefaultWindow = 8

// Ring は送信タイムスタンプの固定長循環バッファ
// 書き込みはディスパッチ側、読み出しは受信側のゴルーチンが行うため
// 内部でロックする
type Ring struct {
	mu    sync.Mutex
	slots []time.Time
}

// NewRing は容量 window のRingを作成する
// window が 0 以下の場合は DefaultWindow を使用
func NewRing(window int) *Ring {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ring{slots: make([]time.Time, window)}
}

// Window はRingの容量を返す
func (r *Ring) Window() int {
	return len(r.slots)
}

// Record は seq に対応するスロットへ送信時刻を記録する
// 未応答のままスロットが一巡した場合は古い時刻を黙って上書きする
func (r *Ring) Record(seq uint16, sent time.Time) {
	r.mu.Lock()
	r.slots[int(seq)%len(r.slots)] = sent
	r.mu.Unlock()
}

// Elapsed は seq の応答を now に受信したときの経過時間を返す
// now が記録時刻以前なら 0 を返す（負値は返さない）
func (r *Ring) Elapsed(seq uint16, now time.Time) time.Duration {
	r.mu.Lock()
	sent := r.slots[int(seq)%len(r.slots)]
	r.mu.Unlock()

	d := now.Sub(sent)
	if d < 0 {
		return 0
	}
	return d
}

// SampleWriter は全コネクション共有のRTTサンプル出力
// 1サンプルにつき10進のマイクロ秒整数を1行書き出す
type SampleWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewSampleWriter は新しいSampleWriterを作成する
func NewSampleWriter(out io.Writer) *SampleWriter {
	return &SampleWriter{out: out}
}

// Emit は1サンプルを書き出す
// nilレシーバはRTT出力無効を意味し、何もしない
func (w *SampleWriter) Emit(d time.Duration) {
	if w == nil {
		return
	}
	w.mu.Lock()
	_, _ = fmt.Fprintf(w.out, "%d\n", d.Microseconds())
	w.mu.Unlock()
}
