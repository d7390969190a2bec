package di_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gocrud/compose/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOnBuildReportsEveryCycle(t *testing.T) {
	services := di.NewServiceCollection()
	services.AddSingletonConstructor(di.TypeOf[*CycleA](), NewCycleA)
	services.AddSingletonConstructor(di.TypeOf[*CycleB](), NewCycleB)

	provider, err := services.Build(di.WithValidateOnBuild(true))
	require.Error(t, err)
	assert.Nil(t, provider)
	assert.ErrorIs(t, err, di.ErrValidation)
	assert.ErrorIs(t, err, di.ErrCircularDependency)

	var agg *di.AggregateValidationError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures, 2)

	for _, f := range agg.Failures {
		var cycle *di.CircularDependencyError
		require.ErrorAs(t, f.Err, &cycle)
		assert.Equal(t, f.ServiceType, cycle.Chain[0])
		assert.Equal(t, f.ServiceType, cycle.Chain[len(cycle.Chain)-1])
	}

	failure, ok := agg.FailureFor(di.TypeOf[*CycleB]())
	require.True(t, ok)
	assert.Equal(t, di.Singleton, failure.Lifetime)
}

func TestValidateOnBuildCollectsMixedFailures(t *testing.T) {
	services := di.NewServiceCollection()
	services.AddSingleton(di.TypeOf[IServiceObject](), di.TypeOf[*ServiceObject]())
	services.AddTransientConstructor(di.TypeOf[*Repository](), NewRepository)
	services.AddSingleton(di.TypeOf[*ServiceObject](), func(di.ServiceProvider) (any, error) {
		return nil, errors.New("factory failed")
	})

	_, err := services.Build(di.WithValidateOnBuild(true))

	var agg *di.AggregateValidationError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures, 2)

	repo, ok := agg.FailureFor(di.TypeOf[*Repository]())
	require.True(t, ok)
	var notFound *di.ConstructorNotFoundError
	require.ErrorAs(t, repo.Err, &notFound)
	assert.Equal(t, []reflect.Type{di.TypeOf[*resource]()}, notFound.Missing)

	_, ok = agg.FailureFor(di.TypeOf[*ServiceObject]())
	assert.True(t, ok)
}

func TestValidateOnBuildDisposesCreatedSingletons(t *testing.T) {
	res := newResource("created during validation", nil)

	services := di.NewServiceCollection()
	services.AddSingleton(di.TypeOf[*resource](), func(di.ServiceProvider) (any, error) {
		return res, nil
	})
	services.AddSingletonConstructor(di.TypeOf[*CycleA](), NewCycleA)
	services.AddSingletonConstructor(di.TypeOf[*CycleB](), NewCycleB)

	_, err := services.Build(di.WithValidateOnBuild(true))
	require.Error(t, err)
	assert.Equal(t, int32(1), res.count.Load())
}

func TestValidateOnBuildChecksOverriddenRegistrations(t *testing.T) {
	services := di.NewServiceCollection()
	services.AddSingletonConstructor(di.TypeOf[*Repository](), NewRepository)
	services.AddSingleton(di.TypeOf[*Repository](), &Repository{})

	_, err := services.Build(di.WithValidateOnBuild(true))
	var agg *di.AggregateValidationError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Failures, 1)

	// 不验证时，后注册的实例覆盖了无法构造的那一条
	services = di.NewServiceCollection()
	services.AddSingletonConstructor(di.TypeOf[*Repository](), NewRepository)
	services.AddSingleton(di.TypeOf[*Repository](), &Repository{})
	provider, err := services.Build()
	require.NoError(t, err)
	_, err = provider.GetRequiredService(di.TypeOf[*Repository]())
	assert.NoError(t, err)
}

func TestValidateOnBuildSucceedsAndCachesSingletons(t *testing.T) {
	var calls int
	services := di.NewServiceCollection()
	services.AddSingleton(di.TypeOf[IServiceObject](), func(di.ServiceProvider) (any, error) {
		calls++
		return &ServiceObject{}, nil
	})

	provider, err := services.Build(di.WithOptions(di.Options{ValidateOnBuild: true}))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	di.MustResolve[IServiceObject](provider)
	assert.Equal(t, 1, calls)
}
