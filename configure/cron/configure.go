package cron

import (
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/hosting"
	"github.com/gocrud/compose/logging"
)

// Section 调度器选项读取的配置节
const Section = "cron"

// Configure 返回 Cron 配置器
// 使用示例: builder.Configure(cron.Configure(func(b *cron.Builder) { ... }))
//
// 注册 *Scheduler 单例并把它登记为托管服务。Builder 没有设置选项时
// 从配置节 "cron" 读取（location、seconds、verbose）。
func Configure(options func(*Builder)) hosting.Configurator {
	return func(ctx *hosting.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		fallback := hosting.BindOptions(ctx, Section, Options{Location: "UTC"})
		opts, err := builder.build(fallback)
		if err != nil {
			ctx.AddError(err)
			return
		}

		logger := ctx.LoggerFactory().CreateLogger("cron")
		jobs := append([]job(nil), builder.jobs...)
		services := ctx.Services()

		services.AddSingleton(di.TypeOf[*Scheduler](), di.Factory(func(p di.ServiceProvider) (any, error) {
			scheduler, err := NewScheduler(p, logger, opts)
			if err != nil {
				return nil, err
			}
			for _, j := range jobs {
				if err := scheduler.add(j); err != nil {
					return nil, err
				}
			}
			return scheduler, nil
		}))
		hosting.AddHostedServiceOf[*Scheduler](services)

		ctx.Logger().Info("cron configured",
			logging.Field{Key: "jobs", Value: len(jobs)},
			logging.Field{Key: "location", Value: opts.Location})
	}
}
