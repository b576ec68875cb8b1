package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"chaos-shop/internal/logger"
)

// Job はワーカーが実行するジョブを表す
type Job func()

// Config はワーカープールの設定
type Config struct {
	NumWorkers  int // ワーカー数（0でCPU数）
	QueueFactor int // キューサイズ = NumWorkers * QueueFactor
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		NumWorkers:  0,   // CPU数
		QueueFactor: 100, // デフォルト倍率
	}
}

// Pool はゴルーチンのプールを管理する
type Pool struct {
	numWorkers int
	jobs       chan Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	stopping   atomic.Bool
	completed  atomic.Uint64
	mu         sync.Mutex
}

// New は新しいワーカープールを作成する
// NumWorkers が 0 の場合は CPU 数を使用
func New(config Config) *Pool {
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	queueFactor := config.QueueFactor
	if queueFactor <= 0 {
		queueFactor = 100
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, numWorkers*queueFactor),
	}
}

// Start はワーカープールを起動する
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	logger.Info("", "WorkerPool started with %d workers", p.numWorkers)
}

// worker は個々のワーカーゴルーチン
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job()
			p.completed.Add(1)
		}
	}
}

// Submit はジョブをプールに送信する
// キューに空きがなければブロックし、プール停止中はfalseを返す
func (p *Pool) Submit(job Job) (submitted bool) {
	p.mu.Lock()
	started := p.started
	ctx := p.ctx
	p.mu.Unlock()
	if !started || p.stopping.Load() {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("", "Submit failed due to panic (channel may be closed): %v", r)
			submitted = false
		}
	}()

	// 先にコンテキストをチェック
	select {
	case <-ctx.Done():
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case p.jobs <- job:
		return true
	}
}

// Stop はワーカープールを停止する
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.stopping.Store(true)
	p.cancel()
	p.wg.Wait()
	close(p.jobs)

	p.mu.Lock()
	p.started = false
	p.stopping.Store(false)
	p.jobs = make(chan Job, cap(p.jobs))
	p.mu.Unlock()

	logger.Info("", "WorkerPool stopped")
}

// NumWorkers はワーカー数を返す
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Pending はキュー内の未処理ジョブ数を返す
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// Completed は完了したジョブ数を返す
func (p *Pool) Completed() uint64 {
	return p.completed.Load()
}
