package cache

import (
	"sync"
	"time"

	"chaos-shop/internal/catalog"
)

// DefaultTTL はキャッシュエントリのデフォルト有効期間
const DefaultTTL = 5 * time.Minute

// Cache は商品カタログのTTLキャッシュ
// バックエンドからの取得成功時に更新され、障害時の応答に使われる
type Cache struct {
	mu       sync.RWMutex
	products []catalog.Product
	storedAt time.Time
	ttl      time.Duration

	// nowはテストで時間を偽装するためのフック
	now func() time.Time
}

// New は指定TTLのキャッシュを作成する
// ttlが0以下の場合はDefaultTTLを使う
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl: ttl,
		now: time.Now,
	}
}

// Put は商品一覧をキャッシュに保存する
func (c *Cache) Put(products []catalog.Product) {
	copied := make([]catalog.Product, len(products))
	copy(copied, products)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = copied
	c.storedAt = c.now()
}

// Get はキャッシュされた商品一覧を返す
// エントリがない、または期限切れの場合はfalseを返す
func (c *Cache) Get() ([]catalog.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.products == nil {
		return nil, false
	}
	if c.now().Sub(c.storedAt) > c.ttl {
		return nil, false
	}

	copied := make([]catalog.Product, len(c.products))
	copy(copied, c.products)
	return copied, true
}

// Age は最後に保存してからの経過時間を返す（エントリがなければ0）
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.products == nil {
		return 0
	}
	return c.now().Sub(c.storedAt)
}

// Invalidate はキャッシュを破棄する
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = nil
	c.storedAt = time.Time{}
}
