// Package stats serves live run statistics over HTTP and WebSocket.
package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"tcpflood/internal/logger"
	"tcpflood/internal/metrics"

	"golang.org/x/net/websocket"
)

// Server は統計サーバー
type Server struct {
	addr    string
	metrics *metrics.Metrics

	mu        sync.Mutex
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しい統計サーバーを作成する
func NewServer(addr string, m *metrics.Metrics) *Server {
	return &Server{
		addr:      addr,
		metrics:   m,
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// StatsResponse は統計レスポンス
type StatsResponse struct {
	Sent            uint64  `json:"sent"`
	Received        uint64  `json:"received"`
	TransportErrors uint64  `json:"transport_errors"`
	SendRate        float64 `json:"send_rate"`
	P50Micros       int64   `json:"p50_us"`
	P90Micros       int64   `json:"p90_us"`
	P99Micros       int64   `json:"p99_us"`
	MaxMicros       int64   `json:"max_us"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
}

func toResponse(s metrics.Snapshot) StatsResponse {
	return StatsResponse{
		Sent:            s.Sent,
		Received:        s.Received,
		TransportErrors: s.TransportErrors,
		SendRate:        s.SendRate,
		P50Micros:       s.P50.Microseconds(),
		P90Micros:       s.P90.Microseconds(),
		P99Micros:       s.P99.Microseconds(),
		MaxMicros:       s.MaxRTT.Microseconds(),
		ElapsedSeconds:  s.Elapsed.Seconds(),
	}
}

// Handler はHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))
	return mux
}

// Start はサーバーを開始し、1秒ごとにスナップショットを配信する
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go s.broadcastLoop(ctx)

	logger.Info("", "Stats server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, toResponse(s.metrics.Snapshot()))
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) broadcast(data interface{}) {
	s.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.Unlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast(map[string]interface{}{
				"type":  "stats",
				"stats": toResponse(s.metrics.Snapshot()),
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}
