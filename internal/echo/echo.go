package echo

import (
	"fmt"
	"net"
	"sync"
	"time"

	"tcpflood/internal/frame"
)

// Config はスタブサーバーの設定
type Config struct {
	Delay     time.Duration // 応答を返すまでの固定遅延
	ChunkSize int           // 0より大きい場合、応答をこのサイズに分割して書き込む
}

// Server はフレームをそのまま返すスタブサーバー
type Server struct {
	cfg Config

	ln net.Listener
	wg sync.WaitGroup

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// New は新しいスタブサーバーを作成する
func New(cfg Config) *Server {
	return &Server{
		cfg:   cfg,
		conns: make(map[net.Conn]struct{}),
	}
}

// Start はループバック上の空きポートで待ち受けを開始する
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.ln = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr は待ち受けアドレスを返す
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Port は待ち受けポートを返す
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Close は待ち受けと全コネクションを閉じて終了を待つ
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	// 書き込みは遅延タイマーのゴルーチンと競合するため直列化する
	var writeMu sync.Mutex
	var pending sync.WaitGroup
	defer pending.Wait()

	r := frame.NewReassembler()
	buf := make([]byte, 64<<10)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			r.Feed(buf[:n], func(m frame.Message) {
				reply := frame.Encode(m.ID, m.Payload)
				pending.Add(1)
				go func() {
					defer pending.Done()
					if s.cfg.Delay > 0 {
						time.Sleep(s.cfg.Delay)
					}
					writeMu.Lock()
					defer writeMu.Unlock()
					s.write(conn, reply)
				}()
			})
		}
		if err != nil {
			return
		}
	}
}

// write は応答を書き込む。ChunkSize指定時は分割して断片化させる
func (s *Server) write(conn net.Conn, reply []byte) {
	if s.cfg.ChunkSize <= 0 {
		_, _ = conn.Write(reply)
		return
	}
	for off := 0; off < len(reply); off += s.cfg.ChunkSize {
		end := off + s.cfg.ChunkSize
		if end > len(reply) {
			end = len(reply)
		}
		if _, err := conn.Write(reply[off:end]); err != nil {
			return
		}
		// カーネル側での結合を避け、クライアントに部分読みをさせる
		time.Sleep(time.Millisecond)
	}
}
