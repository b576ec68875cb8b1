package service

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"chaos-shop/internal/fault"
	"chaos-shop/internal/logger"
)

// Status はサービスの状態を表す
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

const shutdownTimeout = 5 * time.Second

// Service はローカルポートで動くHTTPサービスを表す
// Start/Stopで実際のリスナーを起動・停止し、Suspend/SetDelayは
// 共有するfault.Stateを通じてリクエスト処理に反映される
type Service struct {
	id      string
	addr    string
	handler http.Handler
	faults  *fault.State

	mu       sync.RWMutex
	running  bool
	server   *http.Server
	listener net.Listener
	baseURL  string
}

// New は新しいサービスを作成する
// addrに":0"を指定すると空いているポートが割り当てられる
// faultsがnilの場合は専用の障害状態を作成する
func New(id, addr string, handler http.Handler, faults *fault.State) *Service {
	if faults == nil {
		faults = fault.NewState()
	}
	return &Service{
		id:      id,
		addr:    addr,
		handler: handler,
		faults:  faults,
	}
}

// ID はサービスIDを返す
func (s *Service) ID() string {
	return s.id
}

// Faults は障害状態を返す
func (s *Service) Faults() *fault.State {
	return s.faults
}

// BaseURL は起動中のサービスのベースURLを返す（停止中は空文字）
func (s *Service) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// Start はサービスを起動する
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("service %s is already running", s.id)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("service %s failed to listen on %s: %w", s.id, s.addr, err)
	}

	s.listener = listener
	// ":0"で起動した場合も、実際に束縛されたアドレスを覚えておき
	// 再起動時に同じポートへ再束縛する。クライアントが保持している
	// URLが再起動後も有効であり続けるために必要
	s.addr = listener.Addr().String()
	s.baseURL = "http://" + listener.Addr().String()
	s.server = &http.Server{
		Handler:     s.handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.running = true

	go func(srv *http.Server, l net.Listener) {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			logger.Error(s.id, "Server error: %v", err)
		}
	}(s.server, listener)

	logger.Info(s.id, "Service started on %s", s.baseURL)
	return nil
}

// Stop はサービスを停止する
func (s *Service) Stop() error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("service %s is already stopped", s.id)
	}

	server := s.server
	s.running = false
	s.server = nil
	s.listener = nil
	s.baseURL = ""
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
	}

	logger.Info(s.id, "Service stopped")
	return nil
}

// Status はサービスの現在のステータスを返す
func (s *Service) Status() Status {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	if !running {
		return StatusStopped
	}
	if s.faults.Suspended() {
		return StatusSuspended
	}
	return StatusRunning
}

// Suspend はサービスを一時停止する
// リスナーは生きたままだが、リクエストは503で拒否される
func (s *Service) Suspend() error {
	if s.Status() != StatusRunning {
		return fmt.Errorf("service %s is not running", s.id)
	}

	s.faults.Suspend()
	logger.Info(s.id, "Service suspended")
	return nil
}

// Resume は一時停止中のサービスを再開する
func (s *Service) Resume() error {
	if s.Status() != StatusSuspended {
		return fmt.Errorf("service %s is not suspended", s.id)
	}

	s.faults.Resume()
	logger.Info(s.id, "Service resumed")
	return nil
}

// SetDelay はレスポンス遅延を設定する
func (s *Service) SetDelay(d time.Duration) {
	s.faults.SetDelay(d)
	if d > 0 {
		logger.Info(s.id, "Delay set to %v", d)
	} else {
		logger.Info(s.id, "Delay cleared")
	}
}

// Delay は現在の遅延設定を返す
func (s *Service) Delay() time.Duration {
	return s.faults.Delay()
}
