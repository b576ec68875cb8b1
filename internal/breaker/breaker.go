package breaker

import (
	"errors"
	"sync"
	"time"
)

// State はサーキットブレーカーの状態を表す
type State int

const (
	StateClosed   State = iota // 通常運転
	StateOpen                  // 障害検出中、即座に失敗させる
	StateHalfOpen              // 回復確認のため試験的に通す
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen はブレーカーが開いているため呼び出しを拒否したことを示す
var ErrOpen = errors.New("circuit breaker is open")

// Config はサーキットブレーカーの設定
type Config struct {
	FailureThreshold int           // 連続失敗がこの回数に達するとOpenになる
	OpenTimeout      time.Duration // Open状態からHalfOpenに移るまでの時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker はサーキットブレーカー
//
// Closed状態では呼び出しをそのまま通し、連続失敗が閾値に達するとOpenになる。
// Open状態ではOpenTimeoutが経過するまで即座に失敗させ、経過後はHalfOpenで
// 1回だけ試験呼び出しを通す。成功すればClosedへ、失敗すれば再びOpenへ戻る。
type Breaker struct {
	config Config

	mu            sync.Mutex
	state         State
	failureCount  int
	lastFailure   time.Time
	onStateChange func(from, to State)
	pending       []stateChange
	dispatching   bool

	// nowはテストで時間を偽装するためのフック
	now func() time.Time
}

// stateChange は遷移通知1件分
type stateChange struct {
	from, to State
}

// New は新しいサーキットブレーカーを作成する
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = DefaultConfig().OpenTimeout
	}
	return &Breaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// OnStateChange は状態遷移時のコールバックを設定する
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// transition は状態を変更しコールバックを呼ぶ（mu保持前提）
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	if b.onStateChange != nil {
		// コールバックは単一のディスパッチャで遷移順に直列実行する。
		// ロック外で呼ぶため、コールバック中の再入でもデッドロックしない。
		b.pending = append(b.pending, stateChange{from: from, to: to})
		if !b.dispatching {
			b.dispatching = true
			go b.dispatch()
		}
	}
}

// dispatch はキューされた遷移通知を順番にコールバックへ渡す
func (b *Breaker) dispatch() {
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.dispatching = false
			b.mu.Unlock()
			return
		}
		ch := b.pending[0]
		b.pending = b.pending[1:]
		fn := b.onStateChange
		b.mu.Unlock()

		if fn != nil {
			fn(ch.from, ch.to)
		}
	}
}

// Call はサーキットブレーカー保護付きで関数を実行する
func (b *Breaker) Call(fn func() error) error {
	b.mu.Lock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) > b.config.OpenTimeout {
			b.transition(StateHalfOpen)
		} else {
			b.mu.Unlock()
			return ErrOpen
		}
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failureCount++
		b.lastFailure = b.now()

		if b.failureCount >= b.config.FailureThreshold {
			b.transition(StateOpen)
		}
		return err
	}

	b.failureCount = 0
	b.transition(StateClosed)
	return nil
}

// State は現在の状態を返す
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount は現在の連続失敗回数を返す
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// LastFailure は最後の失敗時刻を返す（失敗がなければゼロ値）
func (b *Breaker) LastFailure() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFailure
}

// Reset はブレーカーをClosed状態に戻す
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.lastFailure = time.Time{}
	b.transition(StateClosed)
}
