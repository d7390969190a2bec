package hosting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/compose/config"
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/logging"
	"go.uber.org/multierr"
)

// HostBuilder 组合根：加载配置、建立日志、执行配置器并构建容器。
//
//	host, err := hosting.NewHostBuilder().
//		ConfigureConfiguration(func(b *config.Builder) { b.AddYAMLFile("app.yaml") }).
//		Configure(redis.Configure(nil)).
//		ConfigureServices(func(s *di.ServiceCollection) { ... }).
//		Build()
type HostBuilder struct {
	environment          string
	configBuilder        *config.Builder
	loggingBuilder       *logging.LoggingBuilder
	configurators        []Configurator
	serviceConfigurators []func(*di.ServiceCollection)
	shutdownTimeout      time.Duration
	mu                   sync.Mutex
}

// NewHostBuilder 创建 HostBuilder
func NewHostBuilder() *HostBuilder {
	return &HostBuilder{
		environment:     "development",
		configBuilder:   config.NewBuilder(),
		loggingBuilder:  logging.NewLoggingBuilder(),
		shutdownTimeout: 30 * time.Second,
	}
}

// UseEnvironment 设置环境名称
func (b *HostBuilder) UseEnvironment(env string) *HostBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.environment = env
	return b
}

// UseShutdownTimeout 设置关闭超时
func (b *HostBuilder) UseShutdownTimeout(timeout time.Duration) *HostBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownTimeout = timeout
	return b
}

// ConfigureConfiguration 配置配置源
func (b *HostBuilder) ConfigureConfiguration(configure func(*config.Builder)) *HostBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// ConfigureLogging 配置日志输出。没有添加任何输出时，
// 使用 "logging" 配置节，节也不存在则输出到控制台。
func (b *HostBuilder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *HostBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// Configure 添加配置器
func (b *HostBuilder) Configure(configurators ...Configurator) *HostBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configurators = append(b.configurators, configurators...)
	return b
}

// ConfigureServices 注册应用自己的服务，在所有配置器之后执行
func (b *HostBuilder) ConfigureServices(configure func(*di.ServiceCollection)) *HostBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		b.serviceConfigurators = append(b.serviceConfigurators, configure)
	}
	return b
}

// AddTask 添加一个简单的后台任务
func (b *HostBuilder) AddTask(task func(ctx context.Context) error) *HostBuilder {
	return b.Configure(func(ctx *BuildContext) {
		ctx.AddHostedService(NewTaskService(task))
	})
}

// Build 构建 Host。容器选项来自配置节 "di"。
func (b *HostBuilder) Build() (*Host, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg, err := b.configBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("hosting: build configuration: %w", err)
	}

	loggers, err := b.buildLogging(cfg)
	if err != nil {
		return nil, err
	}
	logger := loggers.CreateLogger("host")
	env := NewEnvironment(b.environment)

	logger.Info("building host", logging.Field{Key: "environment", Value: env.Name()})

	services := di.NewServiceCollection()
	services.AddSingleton(di.TypeOf[config.Configuration](), cfg)
	services.AddSingleton(di.TypeOf[*config.Root](), cfg)
	services.AddSingleton(di.TypeOf[logging.LoggerFactory](), containerLoggers{loggers})
	services.AddSingleton(di.TypeOf[logging.Logger](), logger)
	services.AddSingleton(di.TypeOf[Environment](), env)

	ctx := &BuildContext{
		services:      services,
		configuration: cfg,
		loggers:       loggers,
		logger:        logger,
		environment:   env,
	}
	for _, configure := range b.configurators {
		configure(ctx)
	}
	for _, configure := range b.serviceConfigurators {
		configure(services)
	}

	diOptions := BindOptions(ctx, "di", di.Options{})
	if len(ctx.errs) > 0 {
		_ = loggers.Close()
		return nil, multierr.Combine(ctx.errs...)
	}

	provider, err := services.Build(
		di.WithOptions(diOptions),
		di.WithLogger(loggers.CreateLogger("di")),
	)
	if err != nil {
		logger.Error("failed to build service provider", logging.Field{Key: "error", Value: err.Error()})
		_ = loggers.Close()
		return nil, err
	}

	return &Host{
		provider:        provider,
		configuration:   cfg,
		loggers:         loggers,
		logger:          logger,
		environment:     env,
		shutdownTimeout: b.shutdownTimeout,
		stopCh:          make(chan struct{}),
	}, nil
}

// containerLoggers 是交给容器的日志工厂。容器释放时不关闭它，
// 由 Host 在容器释放之后关闭真正的工厂。
type containerLoggers struct {
	logging.LoggerFactory
}

func (containerLoggers) Close() error { return nil }

func (b *HostBuilder) buildLogging(cfg config.Configuration) (logging.LoggerFactory, error) {
	opts, err := config.LoadOrDefault(cfg, "logging", logging.Options{})
	if err != nil {
		return nil, fmt.Errorf("hosting: bind section \"logging\": %w", err)
	}

	switch {
	case b.loggingBuilder.HasProviders():
		if opts.Level != "" {
			level, err := logging.ParseLevel(opts.Level)
			if err != nil {
				return nil, err
			}
			b.loggingBuilder.SetMinimumLevel(level)
		}
	case cfg.Exists("logging"):
		if _, err := b.loggingBuilder.Configure(opts); err != nil {
			return nil, err
		}
	default:
		b.loggingBuilder.AddConsole()
	}
	return b.loggingBuilder.Build(), nil
}
