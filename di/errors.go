package di

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// 哨兵错误，用于 errors.Is 判断。下面的结构化错误都能匹配到对应的哨兵。
var (
	ErrServiceNotFound     = errors.New("di: service not found")
	ErrCircularDependency  = errors.New("di: circular dependency detected")
	ErrConstructorNotFound = errors.New("di: no satisfiable constructor")
	ErrValidation          = errors.New("di: build-time validation failed")
	ErrObjectDisposed      = errors.New("di: service provider is disposed")
	ErrArgumentMismatch    = errors.New("di: extra arguments do not match any constructor")
	ErrInvalidDescriptor   = errors.New("di: invalid service descriptor")
	ErrInvalidConstructor  = errors.New("di: invalid constructor")
	ErrCollectionBuilt     = errors.New("di: service collection already built")
)

// ServiceNotFoundError GetRequiredService 没有找到匹配的描述符。
type ServiceNotFoundError struct {
	ServiceType reflect.Type
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("di: no service registered for %v", e.ServiceType)
}

func (e *ServiceNotFoundError) Is(target error) bool { return target == ErrServiceNotFound }

// CircularDependencyError 类型在自身的解析链中再次出现。
// Chain 从根请求开始，以重复出现的类型结束。
type CircularDependencyError struct {
	Chain []reflect.Type
}

func (e *CircularDependencyError) Error() string {
	return "di: circular dependency detected: " + formatChain(e.Chain)
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrCircularDependency }

// ConstructorNotFoundError 没有任何构造函数的参数能全部满足。
// Missing 记录参数最多的候选构造函数中无法解析的参数类型。
type ConstructorNotFoundError struct {
	Type       reflect.Type
	Candidates int
	Missing    []reflect.Type
}

func (e *ConstructorNotFoundError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("di: no constructor declared for %v", e.Type)
	}
	return fmt.Sprintf("di: none of %d constructor(s) for %v is satisfiable, unresolved: %s",
		e.Candidates, e.Type, formatTypes(e.Missing))
}

func (e *ConstructorNotFoundError) Is(target error) bool { return target == ErrConstructorNotFound }

// ArgumentMismatchError Activator 的额外参数无法被任何构造函数完全消费。
type ArgumentMismatchError struct {
	Type   reflect.Type
	Unused []any
}

func (e *ArgumentMismatchError) Error() string {
	types := make([]string, len(e.Unused))
	for i, a := range e.Unused {
		types[i] = fmt.Sprintf("%T", a)
	}
	return fmt.Sprintf("di: constructing %v left extra argument(s) unused: [%s]", e.Type, strings.Join(types, ", "))
}

func (e *ArgumentMismatchError) Is(target error) bool { return target == ErrArgumentMismatch }

// ObjectDisposedError 在已释放的 Provider 上执行操作。
type ObjectDisposedError struct {
	Operation string
}

func (e *ObjectDisposedError) Error() string {
	return fmt.Sprintf("di: cannot %s: service provider is disposed", e.Operation)
}

func (e *ObjectDisposedError) Is(target error) bool { return target == ErrObjectDisposed }

// ValidationFailure 构建时验证中单个描述符的失败记录。
type ValidationFailure struct {
	ServiceType reflect.Type
	Lifetime    Lifetime
	Err         error
}

func (f ValidationFailure) Error() string {
	return fmt.Sprintf("%v (%v): %v", f.ServiceType, f.Lifetime, f.Err)
}

func (f ValidationFailure) Unwrap() error { return f.Err }

// AggregateValidationError 汇总构建时验证收集到的全部失败。
type AggregateValidationError struct {
	Failures []ValidationFailure
}

func (e *AggregateValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "di: validation failed with %d error(s)", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n  - ")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *AggregateValidationError) Is(target error) bool { return target == ErrValidation }

// Unwrap 让 errors.Is / errors.As 能穿透到每个失败的原因。
func (e *AggregateValidationError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// FailureFor 返回指定服务类型的第一条失败记录。
func (e *AggregateValidationError) FailureFor(serviceType reflect.Type) (ValidationFailure, bool) {
	for _, f := range e.Failures {
		if f.ServiceType == serviceType {
			return f, true
		}
	}
	return ValidationFailure{}, false
}

func formatChain(chain []reflect.Type) string {
	parts := make([]string, len(chain))
	for i, t := range chain {
		parts[i] = t.String()
	}
	return strings.Join(parts, " -> ")
}

func formatTypes(types []reflect.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
