package di

import (
	"fmt"
	"reflect"
)

// Lifetime 定义了服务实例的复用策略。
type Lifetime int

const (
	// Singleton 每个 Provider 只创建一个实例。
	Singleton Lifetime = iota
	// Transient 每次请求都创建新实例，不进入生命周期缓存。
	Transient
)

// String 返回生命周期的可读名称。
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// Factory 工厂函数，使用 Provider 创建服务实例。
type Factory func(p ServiceProvider) (any, error)

// descriptorKind 描述符的实现方式
type descriptorKind int

const (
	kindInvalid descriptorKind = iota
	kindImplementation
	kindFactory
	kindInstance
)

// ServiceDescriptor 是一条注册记录：服务类型 + 实现方式 + 生命周期。
// ImplementationType、Factory、Instance 三者必须且只能设置一个。
type ServiceDescriptor struct {
	ServiceType        reflect.Type
	ImplementationType reflect.Type
	Factory            Factory
	Instance           any
	Lifetime           Lifetime
}

// NewTypeDescriptor 创建实现类型描述符。
func NewTypeDescriptor(lifetime Lifetime, serviceType, implType reflect.Type) *ServiceDescriptor {
	return &ServiceDescriptor{ServiceType: serviceType, ImplementationType: implType, Lifetime: lifetime}
}

// NewFactoryDescriptor 创建工厂描述符。
func NewFactoryDescriptor(lifetime Lifetime, serviceType reflect.Type, factory Factory) *ServiceDescriptor {
	return &ServiceDescriptor{ServiceType: serviceType, Factory: factory, Lifetime: lifetime}
}

// NewInstanceDescriptor 创建预构建实例描述符，实例总是单例。
func NewInstanceDescriptor(serviceType reflect.Type, instance any) *ServiceDescriptor {
	return &ServiceDescriptor{ServiceType: serviceType, Instance: instance, Lifetime: Singleton}
}

func (d *ServiceDescriptor) kind() descriptorKind {
	set := 0
	k := kindInvalid
	if d.ImplementationType != nil {
		set++
		k = kindImplementation
	}
	if d.Factory != nil {
		set++
		k = kindFactory
	}
	if d.Instance != nil {
		set++
		k = kindInstance
	}
	if set != 1 {
		return kindInvalid
	}
	return k
}

// Validate 检查描述符是否自洽。
func (d *ServiceDescriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: descriptor is nil", ErrInvalidDescriptor)
	}
	if d.ServiceType == nil {
		return fmt.Errorf("%w: service type is nil", ErrInvalidDescriptor)
	}
	if d.Lifetime != Singleton && d.Lifetime != Transient {
		return fmt.Errorf("%w: %v has unknown %v", ErrInvalidDescriptor, d.ServiceType, d.Lifetime)
	}

	switch d.kind() {
	case kindImplementation:
		if !d.ImplementationType.AssignableTo(d.ServiceType) {
			return fmt.Errorf("%w: implementation %v is not assignable to %v",
				ErrInvalidDescriptor, d.ImplementationType, d.ServiceType)
		}
	case kindInstance:
		if d.Lifetime == Transient {
			return fmt.Errorf("%w: instance registration of %v cannot be transient", ErrInvalidDescriptor, d.ServiceType)
		}
		if t := reflect.TypeOf(d.Instance); !t.AssignableTo(d.ServiceType) {
			return fmt.Errorf("%w: instance of %v is not assignable to %v", ErrInvalidDescriptor, t, d.ServiceType)
		}
	case kindFactory:
	default:
		return fmt.Errorf("%w: %v must set exactly one of implementation type, factory or instance",
			ErrInvalidDescriptor, d.ServiceType)
	}
	return nil
}

// String 返回描述符的调试表示
func (d *ServiceDescriptor) String() string {
	switch d.kind() {
	case kindImplementation:
		return fmt.Sprintf("%v -> %v (%v)", d.ServiceType, d.ImplementationType, d.Lifetime)
	case kindFactory:
		return fmt.Sprintf("%v -> factory (%v)", d.ServiceType, d.Lifetime)
	case kindInstance:
		return fmt.Sprintf("%v -> instance %T (%v)", d.ServiceType, d.Instance, d.Lifetime)
	default:
		return fmt.Sprintf("%v -> invalid (%v)", d.ServiceType, d.Lifetime)
	}
}
