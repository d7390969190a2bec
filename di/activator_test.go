package di_test

import (
	"testing"

	"github.com/gocrud/compose/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActivatorProvider(t *testing.T, ctors ...any) *di.Provider {
	t.Helper()
	services := di.NewServiceCollection()
	services.AddSingleton(di.TypeOf[IServiceObject](), di.TypeOf[*ServiceObject]())
	require.NoError(t, services.Catalog().Declare(NewRootObject, NewRootObjectWithValues))
	if len(ctors) > 0 {
		require.NoError(t, services.Catalog().Declare(ctors...))
	}

	provider, err := services.Build()
	require.NoError(t, err)
	return provider
}

func TestCreateInstancePicksLongestSatisfiableConstructor(t *testing.T) {
	provider := newActivatorProvider(t)

	inst, err := di.CreateInstance(provider, di.TypeOf[*RootObject](), "1", "2")
	require.NoError(t, err)

	root := inst.(*RootObject)
	assert.Equal(t, 3, root.Ctor)
	assert.Equal(t, "1", root.One)
	assert.Equal(t, "2", root.Two)
	assert.Same(t, di.MustResolve[IServiceObject](provider), root.Service)
}

func TestCreateInstanceFallsBackWithoutArgs(t *testing.T) {
	provider := newActivatorProvider(t)

	root, err := di.CreateInstanceOf[*RootObject](provider)
	require.NoError(t, err)
	assert.Equal(t, 1, root.Ctor)
	assert.NotNil(t, root.Service)
}

func TestCreateInstanceIsNotCached(t *testing.T) {
	provider := newActivatorProvider(t)

	a, err := di.CreateInstanceOf[*RootObject](provider, "1", "2")
	require.NoError(t, err)
	b, err := di.CreateInstanceOf[*RootObject](provider, "1", "2")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.False(t, provider.IsService(di.TypeOf[*RootObject]()))
}

func TestCreateInstanceUnusedArguments(t *testing.T) {
	provider := newActivatorProvider(t)

	for _, args := range [][]any{{"1"}, {42}, {"1", "2", "3"}} {
		_, err := di.CreateInstance(provider, di.TypeOf[*RootObject](), args...)
		var mismatch *di.ArgumentMismatchError
		require.ErrorAs(t, err, &mismatch, "args %v", args)
		assert.ErrorIs(t, err, di.ErrArgumentMismatch)
		assert.NotEmpty(t, mismatch.Unused)
	}
}

func TestCreateInstanceMissingDependency(t *testing.T) {
	services := di.NewServiceCollection()
	require.NoError(t, services.Catalog().Declare(NewRootObject))
	provider, err := services.Build()
	require.NoError(t, err)

	_, err = di.CreateInstance(provider, di.TypeOf[*RootObject]())
	var notFound *di.ConstructorNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 1, notFound.Candidates)
	assert.Contains(t, notFound.Missing, di.TypeOf[IServiceObject]())

	_, err = di.CreateInstance(provider, di.TypeOf[IServiceObject]())
	assert.ErrorIs(t, err, di.ErrConstructorNotFound)
}

func TestCreateInstanceInjectsProvider(t *testing.T) {
	provider := newActivatorProvider(t, NewProviderHolder)

	holder, err := di.CreateInstanceOf[*ProviderHolder](provider)
	require.NoError(t, err)

	svc, err := holder.Provider.GetRequiredService(di.TypeOf[IServiceObject]())
	require.NoError(t, err)
	assert.Same(t, di.MustResolve[IServiceObject](provider), svc)
}

func TestCreateInstanceFromFactory(t *testing.T) {
	services := di.NewServiceCollection()
	services.AddSingleton(di.TypeOf[IServiceObject](), di.TypeOf[*ServiceObject]())
	require.NoError(t, services.Catalog().Declare(NewRootObjectWithValues))
	services.AddTransient(di.TypeOf[*RootObject](), func(p di.ServiceProvider) (any, error) {
		return di.CreateInstance(p, di.TypeOf[*RootObject](), "a", "b")
	})
	provider, err := services.Build(di.WithValidateOnBuild(true))
	require.NoError(t, err)

	root := di.MustResolve[*RootObject](provider)
	assert.Equal(t, "a", root.One)
	assert.Equal(t, "b", root.Two)
}
