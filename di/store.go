package di

import "sync"

// lifetimeStore 缓存单例实例，每个注册最多写入一次，并记录创建顺序。
// 它只属于一个 Provider，瞬态服务从不访问它。
type lifetimeStore struct {
	mu        sync.RWMutex
	instances map[*registration]any
	order     []*registration
}

func newLifetimeStore() *lifetimeStore {
	return &lifetimeStore{instances: make(map[*registration]any)}
}

func (s *lifetimeStore) load(reg *registration) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[reg]
	return inst, ok
}

// put 写入实例；已存在时保留原值并返回它。
func (s *lifetimeStore) put(reg *registration, inst any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.instances[reg]; ok {
		return existing
	}
	s.instances[reg] = inst
	s.order = append(s.order, reg)
	return inst
}

func (s *lifetimeStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// drain 按创建顺序取出全部实例并清空缓存。
func (s *lifetimeStore) drain() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, 0, len(s.order))
	for _, reg := range s.order {
		out = append(out, s.instances[reg])
	}
	s.instances = make(map[*registration]any)
	s.order = nil
	return out
}
