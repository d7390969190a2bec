package hosting_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/compose/config"
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/hosting"
	"github.com/gocrud/compose/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type worker struct {
	name    string
	rec     *recorder
	started chan struct{}
}

func newWorker(name string, rec *recorder) *worker {
	return &worker{name: name, rec: rec, started: make(chan struct{})}
}

func (w *worker) Start(ctx context.Context) error {
	w.rec.add("start " + w.name)
	close(w.started)
	<-ctx.Done()
	return ctx.Err()
}

func (w *worker) Stop(context.Context) error {
	w.rec.add("stop " + w.name)
	return nil
}

type connection struct {
	rec *recorder
}

func (c *connection) Close() error {
	c.rec.add("close connection")
	return nil
}

func quietLogging(b *logging.LoggingBuilder) {
	b.AddWriter(&bytes.Buffer{}, &logging.TextFormatter{})
}

func TestHostLifecycle(t *testing.T) {
	rec := &recorder{}
	first := newWorker("first", rec)
	second := newWorker("second", rec)

	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		ConfigureServices(func(s *di.ServiceCollection) {
			s.AddSingleton(di.TypeOf[*connection](), di.Factory(func(di.ServiceProvider) (any, error) {
				return &connection{rec: rec}, nil
			}))
			hosting.AddHostedService(s, first)
			hosting.AddHostedService(s, second)
		}).
		Build()
	require.NoError(t, err)

	_, err = di.Resolve[*connection](host.Services())
	require.NoError(t, err)

	require.NoError(t, host.Start(context.Background()))
	<-first.started
	<-second.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, host.Stop(ctx))
	require.NoError(t, host.Stop(ctx))

	events := rec.list()
	require.Len(t, events, 5)
	assert.ElementsMatch(t, []string{"start first", "start second"}, events[:2])
	assert.Equal(t, []string{"stop second", "stop first", "close connection"}, events[2:])
	assert.True(t, host.Services().IsDisposed())
}

func TestHostRunReturnsHostedServiceError(t *testing.T) {
	boom := errors.New("boom")

	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		AddTask(func(context.Context) error { return boom }).
		Build()
	require.NoError(t, err)

	err = host.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestHostRunStopsOnContextCancel(t *testing.T) {
	var ran atomic.Bool
	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		AddTask(func(ctx context.Context) error {
			ran.Store(true)
			<-ctx.Done()
			return ctx.Err()
		}).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	assert.NoError(t, host.Run(ctx))
	assert.True(t, ran.Load())
}

func TestHostShutdown(t *testing.T) {
	host, err := hosting.NewHostBuilder().ConfigureLogging(quietLogging).Build()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- host.Run(context.Background()) }()

	host.Shutdown()
	host.Shutdown()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestHostRegistersCoreServices(t *testing.T) {
	host, err := hosting.NewHostBuilder().
		UseEnvironment("production").
		ConfigureLogging(quietLogging).
		ConfigureConfiguration(func(b *config.Builder) {
			b.AddInMemory(map[string]any{"app": map[string]any{"name": "compose"}})
		}).
		Build()
	require.NoError(t, err)
	defer host.Stop(context.Background())

	cfg := di.MustResolve[config.Configuration](host.Services())
	assert.Equal(t, "compose", cfg.Get("app:name"))

	env := di.MustResolve[hosting.Environment](host.Services())
	assert.True(t, env.IsProduction())

	_, err = di.Resolve[logging.LoggerFactory](host.Services())
	assert.NoError(t, err)
	_, err = di.Resolve[logging.Logger](host.Services())
	assert.NoError(t, err)
}

// closeTracker 记录关闭之后仍然到达的写入
type closeTracker struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
	late   int
}

func (w *closeTracker) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.late++
		return len(p), nil
	}
	return w.buf.Write(p)
}

func (w *closeTracker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestLoggerFactoryClosedAfterProvider(t *testing.T) {
	out := &closeTracker{}
	host, err := hosting.NewHostBuilder().
		ConfigureLogging(func(b *logging.LoggingBuilder) {
			b.AddProvider(logging.NewWriterLoggerProvider(logging.WriterOptions{
				Output:    out,
				Formatter: &logging.TextFormatter{},
				Closer:    out,
			}))
		}).
		ConfigureConfiguration(func(b *config.Builder) {
			// 验证会解析包括日志工厂在内的全部注册
			b.AddInMemory(map[string]any{"di": map[string]any{"validate_on_build": true}})
		}).
		Build()
	require.NoError(t, err)

	_, err = di.Resolve[logging.LoggerFactory](host.Services())
	require.NoError(t, err)
	require.NoError(t, host.Stop(context.Background()))

	out.mu.Lock()
	defer out.mu.Unlock()
	assert.True(t, out.closed)
	assert.Zero(t, out.late)
	assert.Contains(t, out.buf.String(), "di: service provider disposed")
	assert.Contains(t, out.buf.String(), "host stopped")
}

type cycleA struct{}
type cycleB struct{}

func TestHostValidatesFromConfiguration(t *testing.T) {
	builder := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		ConfigureConfiguration(func(b *config.Builder) {
			b.AddInMemory(map[string]any{"di": map[string]any{"validate_on_build": true}})
		}).
		ConfigureServices(func(s *di.ServiceCollection) {
			s.AddSingletonConstructor(di.TypeOf[*cycleA](), func(*cycleB) *cycleA { return &cycleA{} })
			s.AddSingletonConstructor(di.TypeOf[*cycleB](), func(*cycleA) *cycleB { return &cycleB{} })
		})

	_, err := builder.Build()
	assert.ErrorIs(t, err, di.ErrValidation)
	assert.ErrorIs(t, err, di.ErrCircularDependency)
}

func TestConfiguratorErrorsFailBuild(t *testing.T) {
	_, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		Configure(func(ctx *hosting.BuildContext) {
			ctx.AddError(errors.New("bad redis config"))
		}).
		Build()
	assert.ErrorContains(t, err, "bad redis config")
}

func TestAddHostedServiceOf(t *testing.T) {
	rec := &recorder{}
	w := newWorker("shared", rec)

	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		ConfigureServices(func(s *di.ServiceCollection) {
			s.AddSingleton(di.TypeOf[*worker](), w)
			hosting.AddHostedServiceOf[*worker](s)
		}).
		Build()
	require.NoError(t, err)

	services, err := di.ResolveAll[hosting.HostedService](host.Services())
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Same(t, w, services[0])
	require.NoError(t, host.Stop(context.Background()))
}
