package di

import (
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gocrud/compose/logging"
	"go.uber.org/multierr"
)

var serviceProviderType = reflect.TypeOf((*ServiceProvider)(nil)).Elem()

// ServiceProvider 是解析服务的接口。
// 构造函数参数声明为 ServiceProvider 时会注入 Provider 本身。
type ServiceProvider interface {
	ConstructorLookup

	// GetService 返回服务实例；没有注册时返回 (nil, nil)。
	GetService(serviceType reflect.Type) (any, error)

	// GetRequiredService 返回服务实例；没有注册时返回 *ServiceNotFoundError。
	GetRequiredService(serviceType reflect.Type) (any, error)

	// GetServices 按注册顺序返回该类型的全部实例。
	GetServices(serviceType reflect.Type) ([]any, error)

	// IsService 判断类型能否由 Provider 提供。
	IsService(serviceType reflect.Type) bool
}

// Disposable 由需要在 Provider 释放时清理资源的单例实现。
// 实现了 io.Closer 的单例同样会被关闭。
type Disposable interface {
	Dispose() error
}

// registration 是 Provider 内部对描述符的快照，附带构建时选定的构造函数。
type registration struct {
	descriptor *ServiceDescriptor
	index      int
	ctor       *Constructor
	planErr    error

	// mu 只在构造该单例期间持有
	mu sync.Mutex
}

// Provider 是定型后的不可变注册表视图，独占一个生命周期缓存。
//
// 并发：多个调用方可以同时解析。每个单例注册有自己的构造锁，
// 只在构造它的期间持有，因此单例最多构造一次；构造期间通过任何
// ServiceProvider（包括保存下来的根 Provider）解析其他服务都不会互相阻塞。
// Dispose 拒绝新的解析并等待进行中的解析全部结束。
type Provider struct {
	registrations []*registration
	byType        map[reflect.Type][]*registration
	catalog       ConstructorLookup
	store         *lifetimeStore
	locks         *constructionLocks
	logger        logging.Logger

	state       sync.Mutex
	idle        *sync.Cond
	inflight    int
	disposed    atomic.Bool
	disposeOnce sync.Once
}

func newProvider(descriptors []*ServiceDescriptor, catalog ConstructorLookup, logger logging.Logger) *Provider {
	p := &Provider{
		registrations: make([]*registration, len(descriptors)),
		byType:        make(map[reflect.Type][]*registration),
		catalog:       catalog,
		store:         newLifetimeStore(),
		locks:         newConstructionLocks(),
		logger:        logger,
	}
	p.idle = sync.NewCond(&p.state)

	for i, d := range descriptors {
		reg := &registration{descriptor: d, index: i}
		p.registrations[i] = reg
		p.byType[d.ServiceType] = append(p.byType[d.ServiceType], reg)
	}

	// 描述符集合已经固定，构造函数的选择只需做一次
	for _, reg := range p.registrations {
		if reg.descriptor.kind() != kindImplementation {
			continue
		}
		implType := reg.descriptor.ImplementationType
		reg.ctor, reg.planErr = selectConstructor(implType, catalog.Constructors(implType), p.IsService)
	}

	return p
}

// GetService 解析服务，未注册时返回 (nil, nil)。
func (p *Provider) GetService(serviceType reflect.Type) (any, error) {
	r, err := p.begin("get service")
	if err != nil {
		return nil, err
	}
	defer p.end(r)
	return r.service(serviceType)
}

// GetRequiredService 解析服务，未注册时返回 *ServiceNotFoundError。
func (p *Provider) GetRequiredService(serviceType reflect.Type) (any, error) {
	r, err := p.begin("get required service")
	if err != nil {
		return nil, err
	}
	defer p.end(r)
	return r.required(serviceType)
}

// GetServices 按注册顺序解析某类型的全部注册。
func (p *Provider) GetServices(serviceType reflect.Type) ([]any, error) {
	r, err := p.begin("get services")
	if err != nil {
		return nil, err
	}
	defer p.end(r)
	return r.all(serviceType)
}

// IsService 判断类型是否已注册（或是 ServiceProvider 本身）。
func (p *Provider) IsService(serviceType reflect.Type) bool {
	if serviceType == serviceProviderType {
		return true
	}
	return len(p.byType[serviceType]) > 0
}

// Constructors 委托给构造函数目录。
func (p *Provider) Constructors(t reflect.Type) []*Constructor {
	return p.catalog.Constructors(t)
}

// Descriptors 返回定型后的描述符，按注册顺序。
func (p *Provider) Descriptors() []*ServiceDescriptor {
	out := make([]*ServiceDescriptor, len(p.registrations))
	for i, reg := range p.registrations {
		out[i] = reg.descriptor
	}
	return out
}

// IsDisposed 报告 Provider 是否已释放
func (p *Provider) IsDisposed() bool {
	return p.disposed.Load()
}

// Dispose 拒绝新的解析并等待进行中的解析结束，然后按创建顺序的逆序释放
// 实现了 Disposable 或 io.Closer 的单例（同一实例只释放一次）。
// 重复调用会等待第一次释放完成并返回 nil。不能在构造函数或工厂内部调用。
func (p *Provider) Dispose() error {
	var err error
	p.disposeOnce.Do(func() {
		err = p.dispose()
	})
	return err
}

func (p *Provider) dispose() error {
	p.state.Lock()
	p.disposed.Store(true)
	for p.inflight > 0 {
		p.idle.Wait()
	}
	p.state.Unlock()

	instances := p.store.drain()
	seen := make(map[any]struct{}, len(instances))
	released := 0
	var errs error

	for i := len(instances) - 1; i >= 0; i-- {
		inst := instances[i]
		if inst == any(p) {
			continue
		}
		if v := reflect.ValueOf(inst); v.Comparable() {
			if _, dup := seen[inst]; dup {
				continue
			}
			seen[inst] = struct{}{}
		}

		var err error
		switch v := inst.(type) {
		case Disposable:
			err = v.Dispose()
		case io.Closer:
			err = v.Close()
		default:
			continue
		}
		released++
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("di: dispose %T: %w", inst, err))
		}
	}

	if errs != nil {
		p.logger.Warn("di: errors while disposing singletons",
			logging.Field{Key: "error", Value: errs.Error()})
	}
	p.logger.Info("di: service provider disposed",
		logging.Field{Key: "released", Value: released})
	return errs
}

// begin 开始一次顶层解析。释放开始后的调用直接失败，
// 嵌套在进行中解析里的调用因此不会阻塞 Dispose。
func (p *Provider) begin(op string) (*resolution, error) {
	p.state.Lock()
	defer p.state.Unlock()
	if p.disposed.Load() {
		return nil, &ObjectDisposedError{Operation: op}
	}
	p.inflight++
	return &resolution{provider: p}, nil
}

func (p *Provider) end(r *resolution) {
	r.done.Store(true)
	p.state.Lock()
	p.inflight--
	if p.inflight == 0 {
		p.idle.Broadcast()
	}
	p.state.Unlock()
}

func (p *Provider) last(serviceType reflect.Type) *registration {
	regs := p.byType[serviceType]
	if len(regs) == 0 {
		return nil
	}
	return regs[len(regs)-1]
}
