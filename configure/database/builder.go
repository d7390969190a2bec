package database

import (
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Builder 数据库配置构建器
type Builder struct {
	configs []Options
	names   map[string]struct{}
	errs    []error
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{
		configs: make([]Options, 0),
		names:   make(map[string]struct{}),
	}
}

// Add 添加数据库配置
// name: 实例名称
// dialector: GORM 驱动 (e.g. sqlite.Open(dsn))
// configure: 可选的配置函数
func (b *Builder) Add(name string, dialector gorm.Dialector, configure func(*Options)) *Builder {
	if _, exists := b.names[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("database '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name, dialector)
	if configure != nil {
		configure(opts)
	}
	opts.Name = name

	if err := opts.Validate(); err != nil {
		b.errs = append(b.errs, fmt.Errorf("invalid configuration for '%s': %w", name, err))
		return b
	}

	b.names[name] = struct{}{}
	b.configs = append(b.configs, *opts)
	return b
}

// AddOptions 按 Driver 和 DSN 添加数据库（通常来自配置文件）
func (b *Builder) AddOptions(opts Options, models ...any) *Builder {
	dialector, err := opts.dialector()
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("invalid configuration for '%s': %w", opts.Name, err))
		return b
	}
	return b.Add(opts.Name, dialector, func(o *Options) {
		*o = opts
		o.Dialector = dialector
		o.AutoMigrate = append(o.AutoMigrate, models...)
	})
}

// Len 返回已添加的数据库数量
func (b *Builder) Len() int { return len(b.configs) }

// Build 返回全部数据库配置
func (b *Builder) Build() ([]Options, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("database configuration errors: %w", multierr.Combine(b.errs...))
	}
	return append([]Options(nil), b.configs...), nil
}
