package di

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Constructor 是一个已解析的构造函数签名。
// 形如 func(deps...) T 或 func(deps...) (T, error)，参数在调用时按类型注入。
type Constructor struct {
	fn       reflect.Value
	out      reflect.Type
	params   []reflect.Type
	hasError bool
	implicit bool
	order    int // 在同一类型内的声明顺序
}

// NewConstructor 校验并封装构造函数。
func NewConstructor(fn any) (*Constructor, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidConstructor)
	}
	val := reflect.ValueOf(fn)
	typ := val.Type()
	if typ.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: expected a function, got %v", ErrInvalidConstructor, typ)
	}
	if typ.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic constructor %v is not supported", ErrInvalidConstructor, typ)
	}

	switch typ.NumOut() {
	case 1:
	case 2:
		if !typ.Out(1).Implements(errorType) {
			return nil, fmt.Errorf("%w: second return value of %v must be error", ErrInvalidConstructor, typ)
		}
	default:
		return nil, fmt.Errorf("%w: %v must return (T) or (T, error)", ErrInvalidConstructor, typ)
	}

	params := make([]reflect.Type, typ.NumIn())
	for i := range params {
		params[i] = typ.In(i)
	}

	return &Constructor{
		fn:       val,
		out:      typ.Out(0),
		params:   params,
		hasError: typ.NumOut() == 2,
	}, nil
}

// implicitConstructor 为没有声明构造函数的结构体类型提供零值构造。
func implicitConstructor(t reflect.Type) *Constructor {
	switch {
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
	case t.Kind() == reflect.Struct:
	default:
		return nil
	}
	return &Constructor{out: t, implicit: true}
}

// Type 返回构造函数产生的类型。
func (c *Constructor) Type() reflect.Type { return c.out }

// Params 返回参数类型列表的副本。
func (c *Constructor) Params() []reflect.Type {
	return append([]reflect.Type(nil), c.params...)
}

// NumParams 返回参数个数
func (c *Constructor) NumParams() int { return len(c.params) }

// String 返回构造函数签名
func (c *Constructor) String() string {
	if c.implicit {
		return fmt.Sprintf("new(%v)", c.out)
	}
	return c.fn.Type().String()
}

// Invoke 以给定参数调用构造函数，检查 error 与 nil 返回值。
func (c *Constructor) Invoke(args []reflect.Value) (any, error) {
	if c.implicit {
		if c.out.Kind() == reflect.Pointer {
			return reflect.New(c.out.Elem()).Interface(), nil
		}
		return reflect.Zero(c.out).Interface(), nil
	}

	results := c.fn.Call(args)

	if c.hasError {
		if last := results[1]; !last.IsNil() {
			return nil, fmt.Errorf("di: constructor %v failed: %w", c.fn.Type(), last.Interface().(error))
		}
	}

	first := results[0]
	if isNilValue(first) {
		return nil, fmt.Errorf("di: constructor %v returned nil instance", c.fn.Type())
	}
	return first.Interface(), nil
}

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
