package hosting

import (
	"fmt"

	"github.com/gocrud/compose/config"
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/logging"
)

// Configurator 配置器，集成包通过它向容器注册服务
type Configurator func(*BuildContext)

// BuildContext 是配置器可见的构建环境
type BuildContext struct {
	services      *di.ServiceCollection
	configuration config.Configuration
	loggers       logging.LoggerFactory
	logger        logging.Logger
	environment   Environment
	errs          []error
}

// Services 返回待构建的服务集合
func (c *BuildContext) Services() *di.ServiceCollection { return c.services }

// Configuration 返回已加载的配置
func (c *BuildContext) Configuration() config.Configuration { return c.configuration }

// Logger 返回构建阶段使用的日志记录器
func (c *BuildContext) Logger() logging.Logger { return c.logger }

// LoggerFactory 返回日志工厂，集成包用它创建自己类别的 Logger
func (c *BuildContext) LoggerFactory() logging.LoggerFactory { return c.loggers }

// Environment 返回运行环境
func (c *BuildContext) Environment() Environment { return c.environment }

// AddError 记录配置错误，Build 会返回它们
func (c *BuildContext) AddError(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

// AddHostedService 注册托管服务（实例或构造函数）
func (c *BuildContext) AddHostedService(svc any) {
	AddHostedService(c.services, svc)
}

// BindOptions 从配置节加载 T，节不存在时使用 def
func BindOptions[T any](c *BuildContext, section string, def T) T {
	opts, err := config.LoadOrDefault(c.configuration, section, def)
	if err != nil {
		c.AddError(fmt.Errorf("hosting: bind section %q: %w", section, err))
		return def
	}
	return opts
}
