package di

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	name string
	size int
}

func newWidget() *widget { return &widget{} }
func newNamedWidget(name string) *widget { return &widget{name: name} }
func newSizedWidget(size int) *widget { return &widget{size: size} }
func newFullWidget(name string, size int) *widget { return &widget{name: name, size: size} }

func TestRankConstructors(t *testing.T) {
	catalog := NewTypeCatalog().MustDeclare(newWidget, newNamedWidget, newFullWidget, newSizedWidget)

	ranked := rankConstructors(catalog.Constructors(reflect.TypeOf(&widget{})))
	require.Len(t, ranked, 4)

	assert.Equal(t, 2, ranked[0].NumParams())
	// 参数个数相同时按声明顺序
	assert.Equal(t, []reflect.Type{reflect.TypeOf("")}, ranked[1].Params())
	assert.Equal(t, []reflect.Type{reflect.TypeOf(0)}, ranked[2].Params())
	assert.Equal(t, 0, ranked[3].NumParams())
}

func TestSelectConstructor(t *testing.T) {
	catalog := NewTypeCatalog().MustDeclare(newWidget, newNamedWidget, newFullWidget)
	widgetType := reflect.TypeOf(&widget{})

	onlyStrings := func(t reflect.Type) bool { return t.Kind() == reflect.String }
	ctor, err := selectConstructor(widgetType, catalog.Constructors(widgetType), onlyStrings)
	require.NoError(t, err)
	assert.Equal(t, 1, ctor.NumParams())

	nothing := func(reflect.Type) bool { return false }
	ctor, err = selectConstructor(widgetType, catalog.Constructors(widgetType), nothing)
	require.NoError(t, err)
	assert.Equal(t, 0, ctor.NumParams())

	_, err = selectConstructor(widgetType, []*Constructor{catalog.Constructors(widgetType)[2]}, nothing)
	var notFound *ConstructorNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Len(t, notFound.Missing, 2)
}

func TestImplicitConstructor(t *testing.T) {
	catalog := NewTypeCatalog()

	ctors := catalog.Constructors(reflect.TypeOf(&widget{}))
	require.Len(t, ctors, 1)
	inst, err := ctors[0].Invoke(nil)
	require.NoError(t, err)
	assert.IsType(t, &widget{}, inst)

	ctors = catalog.Constructors(reflect.TypeOf(widget{}))
	require.Len(t, ctors, 1)
	inst, err = ctors[0].Invoke(nil)
	require.NoError(t, err)
	assert.Equal(t, widget{}, inst)

	assert.Nil(t, catalog.Constructors(reflect.TypeOf(0)))
	assert.Nil(t, catalog.Constructors(reflect.TypeOf((*error)(nil)).Elem()))
}

func TestNewConstructorRejectsBadSignatures(t *testing.T) {
	bad := []any{
		nil,
		42,
		func() {},
		func() (int, int) { return 0, 0 },
		func(...string) *widget { return nil },
		func() (*widget, error, int) { return nil, nil, 0 },
	}
	for _, fn := range bad {
		_, err := NewConstructor(fn)
		assert.ErrorIs(t, err, ErrInvalidConstructor, "%T", fn)
	}
}

func TestConstructorInvoke(t *testing.T) {
	ctor, err := NewConstructor(newFullWidget)
	require.NoError(t, err)

	inst, err := ctor.Invoke([]reflect.Value{reflect.ValueOf("w"), reflect.ValueOf(3)})
	require.NoError(t, err)
	assert.Equal(t, &widget{name: "w", size: 3}, inst)

	nilCtor, err := NewConstructor(func() *widget { return nil })
	require.NoError(t, err)
	_, err = nilCtor.Invoke(nil)
	assert.ErrorContains(t, err, "nil instance")
}

func TestDescriptorValidate(t *testing.T) {
	widgetType := reflect.TypeOf(&widget{})

	assert.NoError(t, NewTypeDescriptor(Transient, widgetType, widgetType).Validate())
	assert.NoError(t, NewInstanceDescriptor(widgetType, &widget{}).Validate())

	both := &ServiceDescriptor{ServiceType: widgetType, ImplementationType: widgetType, Instance: &widget{}}
	assert.ErrorIs(t, both.Validate(), ErrInvalidDescriptor)

	unknown := &ServiceDescriptor{ServiceType: widgetType, ImplementationType: widgetType, Lifetime: Lifetime(7)}
	assert.ErrorIs(t, unknown.Validate(), ErrInvalidDescriptor)

	var missing *ServiceDescriptor
	assert.ErrorIs(t, missing.Validate(), ErrInvalidDescriptor)
}
