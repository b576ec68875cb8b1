// Package deployment provides multi-service deployment management.
package deployment

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"chaos-shop/internal/logger"
	"chaos-shop/internal/service"
)

// Manager はデプロイメント管理の基本操作を定義するインターフェース
type Manager interface {
	Add(svc *service.Service) error
	Remove(serviceID string) error
	Get(serviceID string) (*service.Service, bool)
	Services() []*service.Service
	StartAll(ctx context.Context) error
	StopAll() error
	Size() int
	RunningCount() int
}

// Ensure Deployment implements Manager
var _ Manager = (*Deployment)(nil)

// Deployment は複数のサービスを管理する
type Deployment struct {
	mu       sync.RWMutex
	services map[string]*service.Service
	order    []string
}

// New は新しいデプロイメントを作成する
func New() *Deployment {
	return &Deployment{
		services: make(map[string]*service.Service),
	}
}

// Add はデプロイメントにサービスを追加する
func (d *Deployment) Add(svc *service.Service) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.services[svc.ID()]; exists {
		return fmt.Errorf("service %s already exists in deployment", svc.ID())
	}

	d.services[svc.ID()] = svc
	d.order = append(d.order, svc.ID())
	logger.Info("", "Service %s added to deployment", svc.ID())
	return nil
}

// Remove はデプロイメントからサービスを削除する
func (d *Deployment) Remove(serviceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	svc, exists := d.services[serviceID]
	if !exists {
		return fmt.Errorf("service %s not found in deployment", serviceID)
	}

	if svc.Status() != service.StatusStopped {
		_ = svc.Stop()
	}

	delete(d.services, serviceID)
	for i, id := range d.order {
		if id == serviceID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	logger.Info("", "Service %s removed from deployment", serviceID)
	return nil
}

// Get はサービスIDでサービスを取得する
func (d *Deployment) Get(serviceID string) (*service.Service, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	svc, exists := d.services[serviceID]
	return svc, exists
}

// Services は全てのサービスを追加順で返す
func (d *Deployment) Services() []*service.Service {
	d.mu.RLock()
	defer d.mu.RUnlock()

	services := make([]*service.Service, 0, len(d.services))
	for _, id := range d.order {
		services = append(services, d.services[id])
	}
	return services
}

// StartAll は停止中の全サービスを並行して起動する
func (d *Deployment) StartAll(ctx context.Context) error {
	services := d.Services()

	logger.Info("", "Starting all services in deployment (count: %d)", len(services))

	g := new(errgroup.Group)
	for _, svc := range services {
		if svc.Status() != service.StatusStopped {
			continue
		}
		svc := svc
		g.Go(func() error {
			return svc.Start(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("", "Failed to start deployment: %v", err)
		return fmt.Errorf("failed to start deployment: %w", err)
	}

	logger.Info("", "All services started successfully")
	return nil
}

// StopAll は起動中の全サービスを並行して停止する
func (d *Deployment) StopAll() error {
	services := d.Services()

	logger.Info("", "Stopping all services in deployment (count: %d)", len(services))

	g := new(errgroup.Group)
	for _, svc := range services {
		if svc.Status() == service.StatusStopped {
			continue
		}
		svc := svc
		g.Go(func() error {
			return svc.Stop()
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("", "Failed to stop some services (may already be stopped): %v", err)
	}

	logger.Info("", "All services stopped")
	return nil
}

// Size はデプロイメント内のサービス数を返す
func (d *Deployment) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.services)
}

// RunningCount は実行中のサービス数を返す
func (d *Deployment) RunningCount() int {
	return d.countByStatus(service.StatusRunning)
}

// StoppedCount は停止中のサービス数を返す
func (d *Deployment) StoppedCount() int {
	return d.countByStatus(service.StatusStopped)
}

// SuspendedCount は一時停止中のサービス数を返す
func (d *Deployment) SuspendedCount() int {
	return d.countByStatus(service.StatusSuspended)
}

func (d *Deployment) countByStatus(status service.Status) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := 0
	for _, svc := range d.services {
		if svc.Status() == status {
			count++
		}
	}
	return count
}
