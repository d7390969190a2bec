package redis

import (
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/hosting"
	"github.com/gocrud/compose/logging"
	"github.com/redis/go-redis/v9"
)

// Section 默认客户端读取的配置节
const Section = "redis"

// Configure 返回 Redis 配置器。
// 没有通过 options 添加任何客户端时，从配置节 "redis" 读取默认客户端；
// 节也不存在则什么都不注册。
//
//	builder.Configure(redis.Configure(func(b *redis.Builder) {
//		b.AddClient("default", func(o *redis.Options) { o.Addr = "localhost:6379" })
//	}))
func Configure(options func(*Builder)) hosting.Configurator {
	return func(ctx *hosting.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}
		if builder.Len() == 0 && ctx.Configuration().Exists(Section) {
			builder.AddOptions(hosting.BindOptions(ctx, Section, *NewDefaultOptions(DefaultClientName)))
		}

		configs, err := builder.Build()
		if err != nil {
			ctx.AddError(err)
			return
		}
		if len(configs) == 0 {
			return
		}

		logger := ctx.LoggerFactory().CreateLogger("redis")
		services := ctx.Services()

		services.AddSingleton(di.TypeOf[*ClientFactory](), di.Factory(func(di.ServiceProvider) (any, error) {
			return NewClientFactory(configs, logger)
		}))

		for _, opts := range configs {
			if opts.Name != DefaultClientName {
				continue
			}
			services.AddSingleton(di.TypeOf[*redis.Client](), di.Factory(func(p di.ServiceProvider) (any, error) {
				factory, err := di.Resolve[*ClientFactory](p)
				if err != nil {
					return nil, err
				}
				return factory.Get(DefaultClientName)
			}))
			// Cmdable 与 *redis.Client 解析到同一个实例
			services.AddSingleton(di.TypeOf[redis.Cmdable](), di.Factory(func(p di.ServiceProvider) (any, error) {
				return di.Resolve[*redis.Client](p)
			}))
		}

		ctx.Logger().Info("redis configured", logging.Field{Key: "clients", Value: len(configs)})
	}
}
