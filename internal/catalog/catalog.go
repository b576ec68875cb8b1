package catalog

import (
	"fmt"
	"sort"
	"sync"
)

// Product は商品を表す
type Product struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Store はインメモリの商品ストア
type Store struct {
	mu       sync.RWMutex
	products map[int]Product
}

// NewStore はデモ用カタログをシードした商品ストアを作成する
func NewStore() *Store {
	s := &Store{
		products: make(map[int]Product),
	}
	for _, p := range DefaultProducts() {
		s.products[p.ID] = p
	}
	return s
}

// DefaultProducts はデモ用の商品カタログを返す
func DefaultProducts() []Product {
	return []Product{
		{ID: 1, Name: "Laptop", Price: 999.99},
		{ID: 2, Name: "Mouse", Price: 29.99},
		{ID: 3, Name: "Keyboard", Price: 79.99},
		{ID: 4, Name: "Monitor", Price: 349.99},
	}
}

// FallbackProducts はバックエンド障害時にフロントエンドが使う静的カタログを返す
func FallbackProducts() []Product {
	return []Product{
		{ID: 0, Name: "Laptop (cached)", Price: 999.99},
		{ID: 0, Name: "Mouse (cached)", Price: 29.99},
		{ID: 0, Name: "Keyboard (cached)", Price: 79.99},
	}
}

// List は全商品をID昇順で返す
func (s *Store) List() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].ID < products[j].ID
	})
	return products
}

// Get はIDで商品を取得する
func (s *Store) Get(id int) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	return p, exists
}

// Put は商品を追加または更新する
func (s *Store) Put(p Product) error {
	if p.ID <= 0 {
		return fmt.Errorf("product ID must be positive, got %d", p.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

// Size は商品数を返す
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
