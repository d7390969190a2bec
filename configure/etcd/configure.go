package etcd

import (
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/hosting"
	"github.com/gocrud/compose/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Section 默认客户端读取的配置节
const Section = "etcd"

// Configure 返回 etcd 配置器。
// 注册 *ClientFactory；存在默认客户端时还注册 *clientv3.Client 和 clientv3.KV，
// 两者解析到同一个实例。客户端随容器释放而关闭。
//
//	builder.Configure(etcd.Configure(func(b *etcd.Builder) {
//		b.AddClient("default", func(o *etcd.Options) { o.Endpoints = []string{"etcd:2379"} })
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

		logger := ctx.LoggerFactory().CreateLogger("etcd")
		services := ctx.Services()

		services.AddSingleton(di.TypeOf[*ClientFactory](), di.Factory(func(di.ServiceProvider) (any, error) {
			return NewClientFactory(configs, logger)
		}))

		for _, opts := range configs {
			if opts.Name != DefaultClientName {
				continue
			}
			services.AddSingleton(di.TypeOf[*clientv3.Client](), di.Factory(func(p di.ServiceProvider) (any, error) {
				factory, err := di.Resolve[*ClientFactory](p)
				if err != nil {
					return nil, err
				}
				return factory.Get(DefaultClientName)
			}))
			services.AddSingleton(di.TypeOf[clientv3.KV](), di.Factory(func(p di.ServiceProvider) (any, error) {
				return di.Resolve[*clientv3.Client](p)
			}))
		}

		ctx.Logger().Info("etcd configured", logging.Field{Key: "clients", Value: len(configs)})
	}
}
