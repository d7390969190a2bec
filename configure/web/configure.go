package web

import (
	"reflect"

	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/hosting"
	"github.com/gocrud/compose/logging"
	"go.uber.org/multierr"
)

// Section 服务选项读取的配置节
const Section = "web"

// Configure 返回 Web 配置器
// 使用示例: builder.Configure(web.Configure(func(b *web.Builder) { ... }))
//
// 注册 *Server 单例并把它登记为托管服务。Builder 没有设置监听选项时从配置节 "web" 读取。
func Configure(options func(*Builder)) hosting.Configurator {
	return func(ctx *hosting.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}
		if !builder.configured {
			opts := hosting.BindOptions(ctx, Section, *NewDefaultOptions())
			builder.options = &opts
		}

		errs := append([]error(nil), builder.errs...)
		if err := builder.options.Validate(); err != nil {
			errs = append(errs, err)
		}
		catalog := ctx.Services().Catalog()
		for _, c := range builder.controllers {
			if reflect.TypeOf(c).Kind() == reflect.Func {
				errs = append(errs, catalog.Declare(c))
			}
		}
		if err := multierr.Combine(errs...); err != nil {
			ctx.AddError(err)
			return
		}

		logger := ctx.LoggerFactory().CreateLogger("web")
		services := ctx.Services()
		services.AddSingleton(di.TypeOf[*Server](), di.Factory(func(p di.ServiceProvider) (any, error) {
			return newServer(p, builder, logger)
		}))
		hosting.AddHostedServiceOf[*Server](services)

		ctx.Logger().Info("web configured",
			logging.Field{Key: "addr", Value: builder.options.Addr},
			logging.Field{Key: "controllers", Value: len(builder.controllers)})
	}
}
