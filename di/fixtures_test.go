package di_test

import (
	"errors"
	"sync/atomic"

	"github.com/gocrud/compose/di"
)

type IServiceObject interface {
	Name() string
}

type ServiceObject struct {
	name string
}

func (s *ServiceObject) Name() string { return "service" + s.name }

type RootObject struct {
	Service IServiceObject
	One     string
	Two     string
	Ctor    int
}

func NewRootObject(s IServiceObject) *RootObject {
	return &RootObject{Service: s, Ctor: 1}
}

func NewRootObjectWithValues(s IServiceObject, one, two string) *RootObject {
	return &RootObject{Service: s, One: one, Two: two, Ctor: 3}
}

type CycleA struct{ B *CycleB }
type CycleB struct{ A *CycleA }

func NewCycleA(b *CycleB) *CycleA { return &CycleA{B: b} }
func NewCycleB(a *CycleA) *CycleB { return &CycleB{A: a} }

// ProviderHolder 在构造时拿到 ServiceProvider 并保存下来
type ProviderHolder struct {
	Provider di.ServiceProvider
}

func NewProviderHolder(p di.ServiceProvider) *ProviderHolder {
	return &ProviderHolder{Provider: p}
}

// Consumer 构造时通过之前保存的 ServiceProvider 解析依赖
type Consumer struct {
	Service IServiceObject
}

func NewConsumer(h *ProviderHolder) (*Consumer, error) {
	s, err := di.Resolve[IServiceObject](h.Provider)
	if err != nil {
		return nil, err
	}
	return &Consumer{Service: s}, nil
}

// resource 记录 Dispose 调用
type resource struct {
	name     string
	disposed *[]string
	count    atomic.Int32
	err      error
}

func newResource(name string, log *[]string) *resource {
	return &resource{name: name, disposed: log}
}

func (r *resource) Dispose() error {
	r.count.Add(1)
	if r.disposed != nil {
		*r.disposed = append(*r.disposed, r.name)
	}
	return r.err
}

// closer 只实现 io.Closer
type closer struct {
	closed int
}

func (c *closer) Close() error {
	c.closed++
	return nil
}

type Repository struct {
	Res *resource
}

func NewRepository(res *resource) *Repository { return &Repository{Res: res} }

func (r *Repository) Dispose() error {
	if r.Res != nil && r.Res.disposed != nil {
		*r.Res.disposed = append(*r.Res.disposed, "repository")
	}
	return nil
}

var errBoom = errors.New("boom")

func NewFailing() (*Repository, error) { return nil, errBoom }
