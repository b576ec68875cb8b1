package loadgen

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"chaos-shop/internal/logger"
	"chaos-shop/internal/metrics"
	"chaos-shop/internal/worker"
)

// Config は負荷生成の設定
type Config struct {
	TargetURL     string        // リクエスト先URL
	Workers       int           // 同時ワーカー数
	Interval      time.Duration // リクエスト送信間隔
	RequestsLimit int           // 総リクエスト数の上限（0で無制限）
	Timeout       time.Duration // HTTPクライアントのタイムアウト
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		Interval:      100 * time.Millisecond,
		RequestsLimit: 0,
		Timeout:       5 * time.Second,
	}
}

// Generator はHTTPリクエストの負荷を生成する
type Generator struct {
	config  Config
	pool    *worker.Pool
	client  *http.Client
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	sent int // 送信済みリクエスト数
}

// New は新しい負荷生成器を作成する
// m が nil の場合は専用の Metrics を作成する
func New(config Config, m *metrics.Metrics) *Generator {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.Interval <= 0 {
		config.Interval = 100 * time.Millisecond
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if m == nil {
		m = metrics.New()
	}
	return &Generator{
		config:  config,
		pool:    worker.New(worker.Config{NumWorkers: config.Workers}),
		client:  &http.Client{Timeout: config.Timeout},
		metrics: m,
	}
}

// Start は負荷生成を開始する
func (g *Generator) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return
	}

	genCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	g.running = true
	g.sent = 0

	g.pool.Start(genCtx)
	go g.loop(genCtx)

	logger.Info("", "Load generator started: target=%s workers=%d interval=%v",
		g.config.TargetURL, g.config.Workers, g.config.Interval)
}

// loop は一定間隔でリクエストジョブを投入する
func (g *Generator) loop(ctx context.Context) {
	defer close(g.done)

	ticker := time.NewTicker(g.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.mu.Lock()
			limited := g.config.RequestsLimit > 0 && g.sent >= g.config.RequestsLimit
			if !limited {
				g.sent++
			}
			g.mu.Unlock()

			if limited {
				return
			}
			g.pool.Submit(func() { g.request(ctx) })
		}
	}
}

// request は1回のHTTPリクエストを実行し、結果をメトリクスに記録する
func (g *Generator) request(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.TargetURL, nil)
	if err != nil {
		g.metrics.RecordFailure(0)
		return
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		// 停止時のキャンセルは失敗として数えない
		if ctx.Err() == nil {
			g.metrics.RecordFailure(latency)
		}
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		g.metrics.RecordSuccess(latency)
	} else {
		g.metrics.RecordFailure(latency)
	}
}

// Stop は負荷生成を停止し、実行中のリクエスト完了を待つ
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	cancel := g.cancel
	done := g.done
	g.mu.Unlock()

	cancel()
	<-done
	g.pool.Stop()

	logger.Info("", "Load generator stopped: sent=%d", g.Sent())
}

// RunFor は指定時間だけ負荷を生成して停止する
func (g *Generator) RunFor(ctx context.Context, d time.Duration) {
	g.Start(ctx)

	select {
	case <-ctx.Done():
	case <-time.After(d):
	case <-g.done:
		// リクエスト上限に達した
	}

	g.Stop()
}

// Sent は送信済みリクエスト数を返す
func (g *Generator) Sent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sent
}

// Metrics は記録先のメトリクスを返す
func (g *Generator) Metrics() *metrics.Metrics {
	return g.metrics
}

// Running は実行中かどうかを返す
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
