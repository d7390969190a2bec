package di

import (
	"fmt"
	"reflect"
	"slices"
	"sync/atomic"

	"github.com/gocrud/compose/logging"
)

// resolution 是一次顶层调用的解析上下文。
// chain 是正在构造的服务类型栈，用于循环检测；它不跨调用共享。
type resolution struct {
	provider *Provider
	chain    []reflect.Type
	done     atomic.Bool
	view     *resolutionView
}

func (r *resolution) service(serviceType reflect.Type) (any, error) {
	if serviceType == nil {
		return nil, fmt.Errorf("%w: nil service type", ErrServiceNotFound)
	}
	if serviceType == serviceProviderType {
		return r.scope(), nil
	}
	reg := r.provider.last(serviceType)
	if reg == nil {
		return nil, nil
	}
	return r.resolve(reg)
}

func (r *resolution) required(serviceType reflect.Type) (any, error) {
	inst, err := r.service(serviceType)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, &ServiceNotFoundError{ServiceType: serviceType}
	}
	return inst, nil
}

func (r *resolution) all(serviceType reflect.Type) ([]any, error) {
	if serviceType == serviceProviderType {
		return []any{r.scope()}, nil
	}
	regs := r.provider.byType[serviceType]
	out := make([]any, 0, len(regs))
	for _, reg := range regs {
		inst, err := r.resolve(reg)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// resolve 按描述符的生命周期取得实例。
func (r *resolution) resolve(reg *registration) (any, error) {
	d := reg.descriptor
	singleton := d.Lifetime == Singleton

	if singleton {
		if inst, ok := r.provider.store.load(reg); ok {
			return inst, nil
		}
	}

	if slices.Contains(r.chain, d.ServiceType) {
		chain := append(slices.Clone(r.chain), d.ServiceType)
		return nil, &CircularDependencyError{Chain: chain}
	}

	if singleton {
		if err := r.provider.acquire(r, reg); err != nil {
			return nil, err
		}
		defer r.provider.release(reg)
		// 等锁期间可能已被别的调用创建
		if inst, ok := r.provider.store.load(reg); ok {
			return inst, nil
		}
	}

	r.chain = append(r.chain, d.ServiceType)
	inst, err := r.create(reg)
	r.chain = r.chain[:len(r.chain)-1]
	if err != nil {
		return nil, err
	}

	if singleton {
		inst = r.provider.store.put(reg, inst)
		r.provider.logger.Debug("di: singleton created",
			logging.Field{Key: "service", Value: d.ServiceType.String()},
			logging.Field{Key: "index", Value: reg.index})
	}
	return inst, nil
}

func (r *resolution) create(reg *registration) (any, error) {
	d := reg.descriptor

	switch d.kind() {
	case kindInstance:
		return d.Instance, nil

	case kindFactory:
		inst, err := d.Factory(r.scope())
		if err != nil {
			return nil, fmt.Errorf("di: factory for %v: %w", d.ServiceType, err)
		}
		if isNilValue(reflect.ValueOf(inst)) {
			return nil, fmt.Errorf("di: factory for %v returned nil", d.ServiceType)
		}
		if !reflect.TypeOf(inst).AssignableTo(d.ServiceType) {
			return nil, fmt.Errorf("di: factory for %v returned %T", d.ServiceType, inst)
		}
		return inst, nil

	case kindImplementation:
		if reg.planErr != nil {
			return nil, reg.planErr
		}
		args := make([]reflect.Value, len(reg.ctor.params))
		for i, param := range reg.ctor.params {
			arg, err := r.argument(param)
			if err != nil {
				return nil, fmt.Errorf("di: %v parameter %d: %w", reg.ctor, i, err)
			}
			args[i] = arg
		}
		return reg.ctor.Invoke(args)
	}

	return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, d)
}

func (r *resolution) argument(param reflect.Type) (reflect.Value, error) {
	if param == serviceProviderType {
		return reflect.ValueOf(r.scope()), nil
	}
	inst, err := r.required(param)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(inst), nil
}

// scope 返回绑定在本次解析上的 ServiceProvider。
func (r *resolution) scope() ServiceProvider {
	if r.view == nil {
		r.view = &resolutionView{r: r}
	}
	return r.view
}

// resolutionView 是传给工厂和构造函数的 ServiceProvider。
// 构造期间的查找沿用当前解析上下文（共享循环检测栈）；
// 顶层调用结束后它退化为根 Provider，可以安全地保存下来使用。
// 构造期间不能把它交给其他 goroutine 并发使用。
type resolutionView struct {
	r *resolution
}

func (v *resolutionView) GetService(serviceType reflect.Type) (any, error) {
	if v.r.done.Load() {
		return v.r.provider.GetService(serviceType)
	}
	return v.r.service(serviceType)
}

func (v *resolutionView) GetRequiredService(serviceType reflect.Type) (any, error) {
	if v.r.done.Load() {
		return v.r.provider.GetRequiredService(serviceType)
	}
	return v.r.required(serviceType)
}

func (v *resolutionView) GetServices(serviceType reflect.Type) ([]any, error) {
	if v.r.done.Load() {
		return v.r.provider.GetServices(serviceType)
	}
	return v.r.all(serviceType)
}

func (v *resolutionView) IsService(serviceType reflect.Type) bool {
	return v.r.provider.IsService(serviceType)
}

func (v *resolutionView) Constructors(t reflect.Type) []*Constructor {
	return v.r.provider.Constructors(t)
}

// Root 返回视图背后的根 Provider
func (v *resolutionView) Root() *Provider {
	return v.r.provider
}
