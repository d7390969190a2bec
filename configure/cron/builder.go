package cron

import (
	"fmt"

	"go.uber.org/multierr"
)

// Builder Cron 配置构建器
type Builder struct {
	options    Options
	configured bool
	jobs       []job
	errs       []error
}

// NewBuilder 创建 Cron 构建器
func NewBuilder() *Builder {
	return &Builder{
		options: Options{Location: "UTC"},
		jobs:    make([]job, 0),
	}
}

// WithSeconds 启用秒级精度
func (b *Builder) WithSeconds() *Builder {
	b.options.Seconds = true
	b.configured = true
	return b
}

// WithLocation 设置时区
func (b *Builder) WithLocation(location string) *Builder {
	b.options.Location = location
	b.configured = true
	return b
}

// EnableCronLogger 启用 cron 库的内部调度日志
func (b *Builder) EnableCronLogger() *Builder {
	b.options.Verbose = true
	b.configured = true
	return b
}

// AddJob 添加简单任务（无依赖注入）
func (b *Builder) AddJob(spec, name string, handler func()) *Builder {
	if handler == nil {
		b.errs = append(b.errs, fmt.Errorf("cron job '%s': nil function", name))
		return b
	}
	return b.AddJobWithDI(spec, name, handler)
}

// AddJobWithDI 添加带依赖注入的任务
// handler 可以是任何函数，参数在每次执行时从容器解析
//
// 示例：
//
//	builder.AddJobWithDI("*/5 * * * *", "sync-data", func(svc *DataService, logger logging.Logger) {
//	    svc.Sync()
//	})
func (b *Builder) AddJobWithDI(spec, name string, handler any) *Builder {
	j, err := newJob(spec, name, handler)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.jobs = append(b.jobs, j)
	return b
}

// build 校验选项、表达式与任务名，返回最终选项
func (b *Builder) build(fallback Options) (Options, error) {
	opts := b.options
	if !b.configured {
		opts = fallback
	}

	errs := append([]error(nil), b.errs...)
	if _, err := opts.location(); err != nil {
		errs = append(errs, fmt.Errorf("invalid cron location %q: %w", opts.Location, err))
	}

	parser := opts.parser()
	names := make(map[string]struct{}, len(b.jobs))
	for _, j := range b.jobs {
		if _, dup := names[j.name]; dup {
			errs = append(errs, fmt.Errorf("cron job '%s' already configured", j.name))
			continue
		}
		names[j.name] = struct{}{}
		if _, err := parser.Parse(j.spec); err != nil {
			errs = append(errs, fmt.Errorf("cron job '%s': invalid spec %q: %w", j.name, j.spec, err))
		}
	}

	if len(errs) > 0 {
		return Options{}, fmt.Errorf("cron configuration errors: %w", multierr.Combine(errs...))
	}
	return opts, nil
}
