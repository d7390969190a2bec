package di

import (
	"fmt"
	"reflect"

	"github.com/gocrud/compose/logging"
	"go.uber.org/multierr"
)

// ServiceCollection 是组合根使用的注册表：有序、只追加。
// 它只归配置代码所有，Build 之后不再使用。
//
// 示例：
//
//	services := di.NewServiceCollection()
//	services.AddSingletonConstructor(di.TypeOf[Logger](), NewConsoleLogger)
//	services.AddTransient(di.TypeOf[*Request]())
//	provider, err := services.Build(di.WithValidateOnBuild(true))
type ServiceCollection struct {
	descriptors []*ServiceDescriptor
	catalog     *TypeCatalog
	errs        []error
	built       bool
}

// NewServiceCollection 创建空的服务集合。
func NewServiceCollection() *ServiceCollection {
	return &ServiceCollection{
		descriptors: make([]*ServiceDescriptor, 0),
		catalog:     NewTypeCatalog(),
	}
}

// Catalog 返回集合使用的构造函数目录，Build 后由 Provider 共享。
func (s *ServiceCollection) Catalog() *TypeCatalog {
	return s.catalog
}

// Add 追加一条注册。impl 的含义：
//   - reflect.Type：实现类型，通过目录中的构造函数创建
//   - Factory 或 func(ServiceProvider) (any, error)：工厂
//   - nil：实现类型即服务类型
//   - 其他值：预构建实例
//
// 非法注册不会 panic，错误会在 Build 时一并返回。
func (s *ServiceCollection) Add(lifetime Lifetime, serviceType reflect.Type, impl any) *ServiceCollection {
	var d *ServiceDescriptor
	switch v := impl.(type) {
	case nil:
		d = NewTypeDescriptor(lifetime, serviceType, serviceType)
	case reflect.Type:
		d = NewTypeDescriptor(lifetime, serviceType, v)
	case Factory:
		d = NewFactoryDescriptor(lifetime, serviceType, v)
	case func(ServiceProvider) (any, error):
		d = NewFactoryDescriptor(lifetime, serviceType, v)
	default:
		d = &ServiceDescriptor{ServiceType: serviceType, Instance: v, Lifetime: lifetime}
	}
	return s.AddDescriptor(d)
}

// AddDescriptor 追加一个已构造好的描述符。
func (s *ServiceCollection) AddDescriptor(d *ServiceDescriptor) *ServiceCollection {
	if s.built {
		s.errs = append(s.errs, ErrCollectionBuilt)
		return s
	}
	if err := d.Validate(); err != nil {
		s.errs = append(s.errs, err)
		return s
	}
	s.descriptors = append(s.descriptors, d)
	return s
}

// AddSingleton 注册单例服务，impl 可省略。
func (s *ServiceCollection) AddSingleton(serviceType reflect.Type, impl ...any) *ServiceCollection {
	return s.addOptional(Singleton, serviceType, impl)
}

// AddTransient 注册瞬态服务，impl 可省略。
func (s *ServiceCollection) AddTransient(serviceType reflect.Type, impl ...any) *ServiceCollection {
	return s.addOptional(Transient, serviceType, impl)
}

// TryAddSingleton 仅当该服务类型还没有注册时添加。
func (s *ServiceCollection) TryAddSingleton(serviceType reflect.Type, impl ...any) *ServiceCollection {
	if s.Contains(serviceType) {
		return s
	}
	return s.AddSingleton(serviceType, impl...)
}

// TryAddTransient 仅当该服务类型还没有注册时添加。
func (s *ServiceCollection) TryAddTransient(serviceType reflect.Type, impl ...any) *ServiceCollection {
	if s.Contains(serviceType) {
		return s
	}
	return s.AddTransient(serviceType, impl...)
}

// AddSingletonConstructor 登记构造函数并把它们的产出类型注册为单例实现。
// 同一实现类型可以有多个构造函数，解析时挑选参数最多且可满足的那个。
func (s *ServiceCollection) AddSingletonConstructor(serviceType reflect.Type, ctors ...any) *ServiceCollection {
	return s.addConstructors(Singleton, serviceType, ctors)
}

// AddTransientConstructor 与 AddSingletonConstructor 相同，生命周期为瞬态。
func (s *ServiceCollection) AddTransientConstructor(serviceType reflect.Type, ctors ...any) *ServiceCollection {
	return s.addConstructors(Transient, serviceType, ctors)
}

// Contains 判断服务类型是否已注册。
func (s *ServiceCollection) Contains(serviceType reflect.Type) bool {
	for _, d := range s.descriptors {
		if d.ServiceType == serviceType {
			return true
		}
	}
	return false
}

// Len 返回描述符数量
func (s *ServiceCollection) Len() int {
	return len(s.descriptors)
}

// Descriptors 返回描述符的副本，按注册顺序。
func (s *ServiceCollection) Descriptors() []*ServiceDescriptor {
	return append([]*ServiceDescriptor(nil), s.descriptors...)
}

// Build 把集合定型为 Provider。只能成功调用一次。
// 开启 ValidateOnBuild 时，任何描述符无法解析都会返回 *AggregateValidationError。
func (s *ServiceCollection) Build(opts ...Option) (*Provider, error) {
	if s.built {
		return nil, ErrCollectionBuilt
	}
	if len(s.errs) > 0 {
		return nil, fmt.Errorf("di: %d invalid registration(s): %w", len(s.errs), multierr.Combine(s.errs...))
	}

	options := buildOptions(opts)
	p := newProvider(s.descriptors, s.catalog, options.Logger)
	s.built = true

	if options.ValidateOnBuild {
		if err := p.validate(); err != nil {
			if derr := p.Dispose(); derr != nil {
				options.Logger.Warn("di: dispose after failed validation",
					logging.Field{Key: "error", Value: derr.Error()})
			}
			return nil, err
		}
	}

	options.Logger.Info("di: service provider built",
		logging.Field{Key: "descriptors", Value: len(s.descriptors)},
		logging.Field{Key: "validated", Value: options.ValidateOnBuild})
	return p, nil
}

func (s *ServiceCollection) addOptional(lifetime Lifetime, serviceType reflect.Type, impl []any) *ServiceCollection {
	switch len(impl) {
	case 0:
		return s.Add(lifetime, serviceType, nil)
	case 1:
		if impl[0] == nil {
			s.errs = append(s.errs, fmt.Errorf("%w: nil implementation for %v", ErrInvalidDescriptor, serviceType))
			return s
		}
		return s.Add(lifetime, serviceType, impl[0])
	default:
		s.errs = append(s.errs, fmt.Errorf("%w: %v registered with %d implementations", ErrInvalidDescriptor, serviceType, len(impl)))
		return s
	}
}

func (s *ServiceCollection) addConstructors(lifetime Lifetime, serviceType reflect.Type, ctors []any) *ServiceCollection {
	if len(ctors) == 0 {
		s.errs = append(s.errs, fmt.Errorf("%w: no constructor given for %v", ErrInvalidDescriptor, serviceType))
		return s
	}

	parsed := make([]*Constructor, 0, len(ctors))
	for _, fn := range ctors {
		ctor, err := NewConstructor(fn)
		if err != nil {
			s.errs = append(s.errs, fmt.Errorf("%w: %v: %w", ErrInvalidDescriptor, serviceType, err))
			return s
		}
		parsed = append(parsed, ctor)
	}

	implType := parsed[0].out
	for _, ctor := range parsed[1:] {
		if ctor.out != implType {
			s.errs = append(s.errs, fmt.Errorf("%w: constructors for %v produce both %v and %v",
				ErrInvalidDescriptor, serviceType, implType, ctor.out))
			return s
		}
	}

	if err := s.catalog.Declare(ctors...); err != nil {
		s.errs = append(s.errs, err)
		return s
	}
	return s.AddDescriptor(NewTypeDescriptor(lifetime, serviceType, implType))
}
