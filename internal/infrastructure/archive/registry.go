package archive

import (
	"context"
	"sync"
	"time"

	"codecraft-ai-api/internal/domain/entity"
	apperrors "codecraft-ai-api/pkg/errors"
	"codecraft-ai-api/pkg/logger"
	"codecraft-ai-api/pkg/metrics"
)

// Registry 打包项目的内存暂存仓库
// 项目按 TTL 保留供下载，后台周期淘汰过期项，超出容量时淘汰最旧的。
type Registry struct {
	ttl         time.Duration
	maxProjects int

	mu       sync.RWMutex
	projects map[string]*entity.GeneratedProject

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRegistry 创建仓库并启动淘汰循环
func NewRegistry(ttl, evictionInterval time.Duration, maxProjects int) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if evictionInterval <= 0 {
		evictionInterval = 5 * time.Minute
	}
	r := &Registry{
		ttl:         ttl,
		maxProjects: maxProjects,
		projects:    make(map[string]*entity.GeneratedProject),
		stop:        make(chan struct{}),
	}
	go r.evictLoop(evictionInterval)
	return r
}

// Put 登记项目并设置过期时间
func (r *Registry) Put(p *entity.GeneratedProject) {
	now := time.Now()
	p.CreatedAt = now
	p.ExpiresAt = now.Add(r.ttl)

	r.mu.Lock()
	r.projects[p.ID] = p
	if r.maxProjects > 0 && len(r.projects) > r.maxProjects {
		r.evictOldestLocked()
	}
	size := len(r.projects)
	r.mu.Unlock()

	metrics.RegistryProjects.Set(float64(size))
}

// Get 按 ID 取项目，不存在或已过期返回 CodeProjectNotFound
func (r *Registry) Get(id string) (*entity.GeneratedProject, error) {
	r.mu.RLock()
	p, ok := r.projects[id]
	r.mu.RUnlock()
	if !ok || p.Expired(time.Now()) {
		return nil, apperrors.ErrProjectNotFound.WithDetail(id)
	}
	return p, nil
}

// Delete 移除项目
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.projects, id)
	size := len(r.projects)
	r.mu.Unlock()
	metrics.RegistryProjects.Set(float64(size))
}

// Len 当前登记的项目数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.projects)
}

// Close 停止淘汰循环
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

func (r *Registry) evictLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.evictExpired()
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) evictExpired() {
	now := time.Now()
	evicted := 0

	r.mu.Lock()
	for id, p := range r.projects {
		if p.Expired(now) {
			delete(r.projects, id)
			evicted++
		}
	}
	size := len(r.projects)
	r.mu.Unlock()

	if evicted > 0 {
		metrics.RegistryProjects.Set(float64(size))
		metrics.RegistryEvictionsTotal.Add(float64(evicted))
		logger.Info(context.Background(), "evicted expired projects", "count", evicted, "remaining", size)
	}
}

// evictOldestLocked 容量超限时移除创建时间最早的项目，调用方需持有写锁
func (r *Registry) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, p := range r.projects {
		if oldestID == "" || p.CreatedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = p.CreatedAt
		}
	}
	if oldestID != "" {
		delete(r.projects, oldestID)
		metrics.RegistryEvictionsTotal.Inc()
	}
}
