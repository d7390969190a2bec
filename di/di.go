// Package di 是一个进程内的依赖注入容器。
//
// 组合根向 ServiceCollection 注册服务描述符，Build 得到不可变的
// Provider；Provider 按类型解析服务，递归构造依赖，缓存单例，
// 检测循环依赖，并在 Dispose 时释放单例持有的资源。
package di

import (
	"fmt"
	"reflect"
)

// TypeOf 返回 T 的 reflect.Type，对接口类型同样适用。
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Resolve 解析 T 类型的必需服务。
func Resolve[T any](p ServiceProvider) (T, error) {
	var zero T
	inst, err := p.GetRequiredService(TypeOf[T]())
	if err != nil {
		return zero, err
	}
	v, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("di: service %v resolved as %T", TypeOf[T](), inst)
	}
	return v, nil
}

// ResolveOptional 解析 T 类型的可选服务，未注册时返回零值和 nil 错误。
func ResolveOptional[T any](p ServiceProvider) (T, error) {
	var zero T
	inst, err := p.GetService(TypeOf[T]())
	if err != nil || inst == nil {
		return zero, err
	}
	v, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("di: service %v resolved as %T", TypeOf[T](), inst)
	}
	return v, nil
}

// MustResolve 与 Resolve 相同，失败时 panic。
func MustResolve[T any](p ServiceProvider) T {
	v, err := Resolve[T](p)
	if err != nil {
		panic(err)
	}
	return v
}

// ResolveAll 按注册顺序解析 T 的全部注册。
func ResolveAll[T any](p ServiceProvider) ([]T, error) {
	insts, err := p.GetServices(TypeOf[T]())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(insts))
	for _, inst := range insts {
		v, ok := inst.(T)
		if !ok {
			return nil, fmt.Errorf("di: service %v resolved as %T", TypeOf[T](), inst)
		}
		out = append(out, v)
	}
	return out, nil
}
