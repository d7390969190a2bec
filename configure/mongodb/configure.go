package mongodb

import (
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/hosting"
	"github.com/gocrud/compose/logging"
	"github.com/gocrud/mgo"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Section 默认客户端读取的配置节
const Section = "mongodb"

// Configure 返回 MongoDB 配置器。
// 注册 *ClientFactory；存在默认客户端时还注册 *Client、*mgo.Client、
// *mongo.Client 以及默认库 *mgo.Database 与 *mongo.Database。
func Configure(options func(*Builder)) hosting.Configurator {
	return func(ctx *hosting.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}
		if builder.Len() == 0 && ctx.Configuration().Exists(Section) {
			builder.AddOptions(hosting.BindOptions(ctx, Section, *NewDefaultOptions(DefaultClientName, "")))
		}

		configs, err := builder.Build()
		if err != nil {
			ctx.AddError(err)
			return
		}
		if len(configs) == 0 {
			return
		}

		logger := ctx.LoggerFactory().CreateLogger("mongodb")
		services := ctx.Services()

		services.AddSingleton(di.TypeOf[*ClientFactory](), di.Factory(func(di.ServiceProvider) (any, error) {
			return NewClientFactory(configs, logger)
		}))

		for _, opts := range configs {
			if opts.Name != DefaultClientName {
				continue
			}
			services.AddSingleton(di.TypeOf[*Client](), di.Factory(func(p di.ServiceProvider) (any, error) {
				factory, err := di.Resolve[*ClientFactory](p)
				if err != nil {
					return nil, err
				}
				return factory.Get(DefaultClientName)
			}))
			services.AddSingleton(di.TypeOf[*mgo.Client](), di.Factory(func(p di.ServiceProvider) (any, error) {
				client, err := di.Resolve[*Client](p)
				if err != nil {
					return nil, err
				}
				return client.Client, nil
			}))
			services.AddSingleton(di.TypeOf[*mongo.Client](), di.Factory(func(p di.ServiceProvider) (any, error) {
				client, err := di.Resolve[*Client](p)
				if err != nil {
					return nil, err
				}
				return client.Native(), nil
			}))
			services.AddSingleton(di.TypeOf[*mgo.Database](), di.Factory(func(p di.ServiceProvider) (any, error) {
				client, err := di.Resolve[*Client](p)
				if err != nil {
					return nil, err
				}
				return client.DefaultDatabase(), nil
			}))
			services.AddSingleton(di.TypeOf[*mongo.Database](), di.Factory(func(p di.ServiceProvider) (any, error) {
				db, err := di.Resolve[*mgo.Database](p)
				if err != nil {
					return nil, err
				}
				return db.Native(), nil
			}))
		}

		ctx.Logger().Info("mongodb configured", logging.Field{Key: "clients", Value: len(configs)})
	}
}
