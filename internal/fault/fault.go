package fault

import (
	"math/rand"
	"sync"
	"time"
)

// State はサービス単位の障害注入状態を保持する
// バックエンドはリクエスト処理のたびにStateを参照し、
// カオス注入や実験のアクションがStateを書き換える
type State struct {
	mu        sync.RWMutex
	delay     time.Duration
	suspended bool
	errorRate float64
}

// NewState は新しい障害状態を作成する
func NewState() *State {
	return &State{}
}

// SetDelay は人工遅延を設定する
func (s *State) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Delay は現在の遅延設定を返す
func (s *State) Delay() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delay
}

// Suspend はサービスを一時停止状態にする
// 一時停止中のサービスは全リクエストに503を返す
func (s *State) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
}

// Resume は一時停止状態を解除する
func (s *State) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
}

// Suspended は一時停止中かどうかを返す
func (s *State) Suspended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suspended
}

// SetErrorRate は強制エラー率を設定する（0.0〜1.0）
func (s *State) SetErrorRate(rate float64) {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorRate = rate
}

// ErrorRate は現在の強制エラー率を返す
func (s *State) ErrorRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errorRate
}

// ShouldFail はエラー率に基づいてこのリクエストを失敗させるべきかを返す
func (s *State) ShouldFail() bool {
	rate := s.ErrorRate()
	if rate <= 0 {
		return false
	}
	return rand.Float64() < rate
}

// ApplyDelay は設定された遅延だけスリープする
func (s *State) ApplyDelay() {
	if d := s.Delay(); d > 0 {
		time.Sleep(d)
	}
}

// Clear は全ての障害状態を解除する
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = 0
	s.suspended = false
	s.errorRate = 0
}

// Active は何らかの障害が注入されているかどうかを返す
func (s *State) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delay > 0 || s.suspended || s.errorRate > 0
}
