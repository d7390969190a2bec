package di

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// ConstructorLookup 是类型自省能力：给定类型，列出它的公开构造函数。
type ConstructorLookup interface {
	Constructors(t reflect.Type) []*Constructor
}

// TypeCatalog 按产出类型登记构造函数，保留声明顺序。
// 没有声明构造函数的结构体类型会得到一个零值构造函数。
type TypeCatalog struct {
	mu    sync.RWMutex
	ctors map[reflect.Type][]*Constructor
}

// NewTypeCatalog 创建空的类型目录
func NewTypeCatalog() *TypeCatalog {
	return &TypeCatalog{ctors: make(map[reflect.Type][]*Constructor)}
}

// Declare 登记一个或多个构造函数，按各自的返回类型归类。
func (c *TypeCatalog) Declare(fns ...any) error {
	parsed := make([]*Constructor, 0, len(fns))
	for _, fn := range fns {
		ctor, err := NewConstructor(fn)
		if err != nil {
			return err
		}
		parsed = append(parsed, ctor)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ctor := range parsed {
		existing := c.ctors[ctor.out]
		ctor.order = len(existing)
		c.ctors[ctor.out] = append(existing, ctor)
	}
	return nil
}

// MustDeclare 与 Declare 相同，失败时 panic
func (c *TypeCatalog) MustDeclare(fns ...any) *TypeCatalog {
	if err := c.Declare(fns...); err != nil {
		panic(fmt.Sprintf("di: declare constructors: %v", err))
	}
	return c
}

// Constructors 返回 t 的构造函数，按声明顺序。
func (c *TypeCatalog) Constructors(t reflect.Type) []*Constructor {
	c.mu.RLock()
	declared := c.ctors[t]
	c.mu.RUnlock()

	if len(declared) > 0 {
		return append([]*Constructor(nil), declared...)
	}
	if ctor := implicitConstructor(t); ctor != nil {
		return []*Constructor{ctor}
	}
	return nil
}

// rankConstructors 按参数个数降序排序，个数相同时保持声明顺序。
func rankConstructors(ctors []*Constructor) []*Constructor {
	ranked := append([]*Constructor(nil), ctors...)
	slices.SortStableFunc(ranked, func(a, b *Constructor) int {
		if n := cmp.Compare(len(b.params), len(a.params)); n != 0 {
			return n
		}
		return cmp.Compare(a.order, b.order)
	})
	return ranked
}

// selectConstructor 返回第一个所有参数都可解析的候选。
// 都不满足时返回 ConstructorNotFoundError，记录参数最多的候选缺失的类型。
func selectConstructor(t reflect.Type, ctors []*Constructor, resolvable func(reflect.Type) bool) (*Constructor, error) {
	ranked := rankConstructors(ctors)

	var missing []reflect.Type
	for _, ctor := range ranked {
		var unresolved []reflect.Type
		for _, param := range ctor.params {
			if !resolvable(param) {
				unresolved = append(unresolved, param)
			}
		}
		if len(unresolved) == 0 {
			return ctor, nil
		}
		if missing == nil {
			missing = unresolved
		}
	}

	return nil, &ConstructorNotFoundError{Type: t, Candidates: len(ranked), Missing: missing}
}
