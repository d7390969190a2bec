package database

import (
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/hosting"
	"github.com/gocrud/compose/logging"
	"gorm.io/gorm"
)

// Section 默认数据库读取的配置节
const Section = "database"

// Configure 返回数据库配置器。
// 没有通过 options 添加数据库时，从配置节 "database" 读取默认数据库（driver + dsn）。
// 注册 *Factory；存在默认数据库时还注册 *gorm.DB。连接随容器释放而关闭。
// 容器中注册的 *Migrations 会在数据库打开时一并迁移。
func Configure(options func(*Builder)) hosting.Configurator {
	return func(ctx *hosting.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}
		if builder.Len() == 0 && ctx.Configuration().Exists(Section) {
			builder.AddOptions(hosting.BindOptions(ctx, Section, *NewDefaultOptions(DefaultName, nil)))
		}

		configs, err := builder.Build()
		if err != nil {
			ctx.AddError(err)
			return
		}
		if len(configs) == 0 {
			return
		}

		logger := ctx.LoggerFactory().CreateLogger("database")
		services := ctx.Services()

		services.AddSingleton(di.TypeOf[*Factory](), di.Factory(func(p di.ServiceProvider) (any, error) {
			merged, err := applyMigrations(p, configs)
			if err != nil {
				return nil, err
			}
			return NewFactory(merged, logger)
		}))

		for _, opts := range configs {
			if opts.Name != DefaultName {
				continue
			}
			services.AddSingleton(di.TypeOf[*gorm.DB](), di.Factory(func(p di.ServiceProvider) (any, error) {
				factory, err := di.Resolve[*Factory](p)
				if err != nil {
					return nil, err
				}
				return factory.Get(DefaultName)
			}))
		}

		ctx.Logger().Info("database configured", logging.Field{Key: "databases", Value: len(configs)})
	}
}
