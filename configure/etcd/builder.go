package etcd

import (
	"fmt"

	"go.uber.org/multierr"
)

// Builder etcd 客户端配置构建器
type Builder struct {
	configs []Options
	names   map[string]struct{}
	errs    []error
}

// NewBuilder 创建 etcd 构建器
func NewBuilder() *Builder {
	return &Builder{
		configs: make([]Options, 0),
		names:   make(map[string]struct{}),
	}
}

// AddClient 添加一个 etcd 客户端配置
func (b *Builder) AddClient(name string, configure func(*Options)) *Builder {
	if _, exists := b.names[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("etcd client '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}
	opts.Name = name

	if err := opts.Validate(); err != nil {
		b.errs = append(b.errs, fmt.Errorf("invalid etcd configuration for '%s': %w", name, err))
		return b
	}

	b.names[name] = struct{}{}
	b.configs = append(b.configs, *opts)
	return b
}

// AddOptions 添加一个完整的客户端配置
func (b *Builder) AddOptions(opts Options) *Builder {
	return b.AddClient(opts.Name, func(o *Options) { *o = opts })
}

// Len 返回已添加的客户端数量
func (b *Builder) Len() int { return len(b.configs) }

// Build 返回全部客户端配置
func (b *Builder) Build() ([]Options, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("etcd configuration errors: %w", multierr.Combine(b.errs...))
	}
	return append([]Options(nil), b.configs...), nil
}
