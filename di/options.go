package di

import "github.com/gocrud/compose/logging"

// Options 控制 ServiceCollection.Build 的行为。
// 字段带有 json/yaml 标签，可以直接从配置节绑定。
type Options struct {
	// ValidateOnBuild 为 true 时在 Build 期间试解析全部描述符并汇总错误。
	ValidateOnBuild bool `json:"validate_on_build" yaml:"validate_on_build"`

	// Logger 记录构建、单例创建与释放过程，默认不输出。
	Logger logging.Logger `json:"-" yaml:"-"`
}

// Option 配置 Build 选项。
type Option func(*Options)

// WithValidateOnBuild 设置是否在构建时验证整个依赖图。
func WithValidateOnBuild(validate bool) Option {
	return func(o *Options) {
		o.ValidateOnBuild = validate
	}
}

// WithLogger 设置 Provider 使用的日志记录器。
func WithLogger(logger logging.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithOptions 整体覆盖选项（通常来自配置文件）。
// Logger 为空时保留之前设置的值。
func WithOptions(opts Options) Option {
	return func(o *Options) {
		logger := o.Logger
		*o = opts
		if o.Logger == nil {
			o.Logger = logger
		}
	}
}

func buildOptions(opts []Option) Options {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	return o
}
