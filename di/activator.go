package di

import (
	"fmt"
	"reflect"
)

// CreateInstance 构造一个未必注册过的类型 t。
// extraArgs 按精确类型绑定到构造函数参数，每个只用一次；其余参数由 p 解析。
// 候选构造函数按参数个数降序尝试，第一个能消费全部 extraArgs 且其余参数都可解析的胜出。
// 构造出的实例不会被 Provider 缓存或释放。
func CreateInstance(p ServiceProvider, t reflect.Type, extraArgs ...any) (any, error) {
	if p == nil {
		return nil, fmt.Errorf("di: create instance of %v: nil service provider", t)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrConstructorNotFound)
	}

	// 根 Provider 上的调用作为一次顶层解析，嵌套解析共享同一个上下文
	if root, ok := p.(*Provider); ok {
		r, err := root.begin("create instance of " + t.String())
		if err != nil {
			return nil, err
		}
		defer root.end(r)
		p = r.scope()
	}

	ranked := rankConstructors(p.Constructors(t))
	if len(ranked) == 0 {
		return nil, &ConstructorNotFoundError{Type: t}
	}

	var (
		missing []reflect.Type
		unused  []any
	)
	for _, ctor := range ranked {
		b := bindArguments(p, ctor, extraArgs)
		if len(b.unresolved) > 0 {
			if missing == nil {
				missing = b.unresolved
			}
			continue
		}
		if len(b.unused) > 0 {
			if unused == nil {
				unused = b.unused
			}
			continue
		}
		return invokeBound(p, ctor, b, extraArgs)
	}

	if unused != nil {
		return nil, &ArgumentMismatchError{Type: t, Unused: unused}
	}
	return nil, &ConstructorNotFoundError{Type: t, Candidates: len(ranked), Missing: missing}
}

// CreateInstanceOf 是 CreateInstance 的泛型版本。
func CreateInstanceOf[T any](p ServiceProvider, extraArgs ...any) (T, error) {
	var zero T
	inst, err := CreateInstance(p, TypeOf[T](), extraArgs...)
	if err != nil {
		return zero, err
	}
	return inst.(T), nil
}

// binding 记录每个参数的来源：extraArgs 下标，或 -1 表示由 Provider 解析。
type binding struct {
	slots      []int
	unresolved []reflect.Type
	unused     []any
}

func bindArguments(p ServiceProvider, ctor *Constructor, extraArgs []any) binding {
	used := make([]bool, len(extraArgs))
	b := binding{slots: make([]int, len(ctor.params))}

	for i, param := range ctor.params {
		b.slots[i] = -1
		if j := matchArgument(extraArgs, used, param); j >= 0 {
			used[j] = true
			b.slots[i] = j
			continue
		}
		if param == serviceProviderType || p.IsService(param) {
			continue
		}
		b.unresolved = append(b.unresolved, param)
	}

	for j, ok := range used {
		if !ok {
			b.unused = append(b.unused, extraArgs[j])
		}
	}
	return b
}

// matchArgument 返回第一个未使用且类型与 param 完全一致的参数下标。
func matchArgument(extraArgs []any, used []bool, param reflect.Type) int {
	for j, arg := range extraArgs {
		if used[j] || arg == nil {
			continue
		}
		if reflect.TypeOf(arg) == param {
			return j
		}
	}
	return -1
}

func invokeBound(p ServiceProvider, ctor *Constructor, b binding, extraArgs []any) (any, error) {
	args := make([]reflect.Value, len(ctor.params))
	for i, param := range ctor.params {
		switch {
		case b.slots[i] >= 0:
			args[i] = reflect.ValueOf(extraArgs[b.slots[i]])
		case param == serviceProviderType:
			args[i] = reflect.ValueOf(&p).Elem()
		default:
			inst, err := p.GetRequiredService(param)
			if err != nil {
				return nil, fmt.Errorf("di: %v parameter %d: %w", ctor, i, err)
			}
			args[i] = reflect.ValueOf(inst)
		}
	}
	return ctor.Invoke(args)
}
