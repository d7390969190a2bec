package redis_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/gocrud/compose/config"
	"github.com/gocrud/compose/configure/redis"
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/hosting"
	"github.com/gocrud/compose/logging"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CacheService 模拟依赖 Redis 客户端的服务
type CacheService struct {
	Client goredis.Cmdable
}

func NewCacheService(client goredis.Cmdable) *CacheService {
	return &CacheService{Client: client}
}

func quietLogging(b *logging.LoggingBuilder) {
	b.AddWriter(&bytes.Buffer{}, &logging.TextFormatter{})
}

func TestRedisConfiguration(t *testing.T) {
	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		Configure(redis.Configure(func(b *redis.Builder) {
			b.AddClient(redis.DefaultClientName, func(o *redis.Options) {
				o.Addr = "localhost:6390"
			})
			b.AddClient("queue", func(o *redis.Options) {
				o.Addr = "localhost:6391"
				o.DB = 2
			})
		})).
		ConfigureServices(func(s *di.ServiceCollection) {
			s.AddSingletonConstructor(di.TypeOf[*CacheService](), NewCacheService)
		}).
		Build()
	require.NoError(t, err)

	client, err := di.Resolve[*goredis.Client](host.Services())
	require.NoError(t, err)
	assert.Equal(t, "localhost:6390", client.Options().Addr)

	svc, err := di.Resolve[*CacheService](host.Services())
	require.NoError(t, err)
	assert.Same(t, client, svc.Client)

	factory, err := di.Resolve[*redis.ClientFactory](host.Services())
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "queue"}, factory.Names())

	queue, err := factory.Get("queue")
	require.NoError(t, err)
	assert.Equal(t, 2, queue.Options().DB)

	again, err := factory.Get("queue")
	require.NoError(t, err)
	assert.Same(t, queue, again)

	_, err = factory.Get("missing")
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, host.Stop(ctx))

	// 容器释放后客户端已关闭
	assert.ErrorIs(t, client.Ping(context.Background()).Err(), goredis.ErrClosed)
	assert.ErrorIs(t, queue.Ping(context.Background()).Err(), goredis.ErrClosed)
}

func TestRedisFromConfiguration(t *testing.T) {
	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		ConfigureConfiguration(func(b *config.Builder) {
			b.AddInMemory(map[string]any{
				"redis": map[string]any{
					"addr":         "cache:6379",
					"db":           3,
					"dial_timeout": "2s",
				},
			})
		}).
		Configure(redis.Configure(nil)).
		Build()
	require.NoError(t, err)
	defer host.Stop(context.Background())

	client, err := di.Resolve[*goredis.Client](host.Services())
	require.NoError(t, err)
	opts := client.Options()
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)
	// 未配置的字段保留默认值
	assert.Equal(t, 10, opts.PoolSize)
}

func TestRedisNotConfigured(t *testing.T) {
	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		Configure(redis.Configure(nil)).
		Build()
	require.NoError(t, err)
	defer host.Stop(context.Background())

	assert.False(t, host.Services().IsService(di.TypeOf[*goredis.Client]()))
	assert.False(t, host.Services().IsService(di.TypeOf[*redis.ClientFactory]()))
}

func TestRedisBuilderErrors(t *testing.T) {
	builder := redis.NewBuilder()

	builder.AddClient("invalid", func(o *redis.Options) {
		o.Addr = ""
	})
	builder.AddClient("duplicate", nil)
	builder.AddClient("duplicate", nil)

	_, err := builder.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis address is required")
	assert.Contains(t, err.Error(), "'duplicate' already configured")
	assert.Equal(t, 1, builder.Len())
}

func TestRedisBuilderErrorsFailHostBuild(t *testing.T) {
	_, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		Configure(redis.Configure(func(b *redis.Builder) {
			b.AddClient("bad", func(o *redis.Options) { o.DialTimeout = 0 })
		})).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial timeout")
}

func TestClientFactoryClose(t *testing.T) {
	factory, err := redis.NewClientFactory([]redis.Options{*redis.NewDefaultOptions("a")}, nil)
	require.NoError(t, err)

	client, err := factory.Get("a")
	require.NoError(t, err)
	// 客户端先被单独关闭，工厂关闭时忽略
	require.NoError(t, client.Close())
	require.NoError(t, factory.Close())
	require.NoError(t, factory.Close())

	_, err = factory.Get("a")
	assert.ErrorIs(t, err, goredis.ErrClosed)

	_, err = redis.NewClientFactory([]redis.Options{
		*redis.NewDefaultOptions("a"), *redis.NewDefaultOptions("a"),
	}, nil)
	assert.Error(t, err)
}
