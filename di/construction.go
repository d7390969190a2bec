package di

import (
	"slices"
	"sync"
)

// constructionLocks 记录哪个解析正在构造哪个单例注册、哪个解析在等待哪个注册。
// 每个注册的 mu 只在构造该注册期间持有；等待前沿着 "等待 → 持有者" 走一遍，
// 回到自己说明不同调用之间的依赖成环，直接报错而不是互相等待。
type constructionLocks struct {
	mu       sync.Mutex
	builders map[*registration]*resolution
	waiting  map[*resolution]*registration
}

func newConstructionLocks() *constructionLocks {
	return &constructionLocks{
		builders: make(map[*registration]*resolution),
		waiting:  make(map[*resolution]*registration),
	}
}

// acquire 获取注册的构造锁
func (p *Provider) acquire(r *resolution, reg *registration) error {
	l := p.locks

	l.mu.Lock()
	for owner := l.builders[reg]; owner != nil; {
		if owner == r {
			l.mu.Unlock()
			return &CircularDependencyError{Chain: append(slices.Clone(r.chain), reg.descriptor.ServiceType)}
		}
		next, ok := l.waiting[owner]
		if !ok {
			break
		}
		owner = l.builders[next]
	}
	l.waiting[r] = reg
	l.mu.Unlock()

	reg.mu.Lock()

	l.mu.Lock()
	delete(l.waiting, r)
	l.builders[reg] = r
	l.mu.Unlock()
	return nil
}

func (p *Provider) release(reg *registration) {
	l := p.locks
	l.mu.Lock()
	delete(l.builders, reg)
	l.mu.Unlock()
	reg.mu.Unlock()
}
