package di_test

import (
	"testing"

	"github.com/gocrud/compose/di"
)

func newBenchProvider(b *testing.B) *di.Provider {
	b.Helper()
	services := di.NewServiceCollection()
	services.AddSingleton(di.TypeOf[IServiceObject](), di.TypeOf[*ServiceObject]())
	services.AddTransientConstructor(di.TypeOf[*RootObject](), NewRootObject)
	provider, err := services.Build(di.WithValidateOnBuild(true))
	if err != nil {
		b.Fatal(err)
	}
	return provider
}

func BenchmarkResolveSingleton(b *testing.B) {
	provider := newBenchProvider(b)
	serviceType := di.TypeOf[IServiceObject]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := provider.GetRequiredService(serviceType); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResolveTransient(b *testing.B) {
	provider := newBenchProvider(b)
	serviceType := di.TypeOf[*RootObject]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := provider.GetRequiredService(serviceType); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResolveSingletonParallel(b *testing.B) {
	provider := newBenchProvider(b)
	serviceType := di.TypeOf[IServiceObject]()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := provider.GetRequiredService(serviceType); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
