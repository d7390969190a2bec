package web

import (
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
)

// Options Web 服务配置。Addr 形如 ":8080"，端口为 0 时由系统分配。
type Options struct {
	Addr           string        `json:"addr" yaml:"addr"`
	Mode           string        `json:"mode" yaml:"mode"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout    time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	MaxHeaderBytes int           `json:"max_header_bytes" yaml:"max_header_bytes"`
	AccessLog      bool          `json:"access_log" yaml:"access_log"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions() *Options {
	return &Options{
		Addr:         ":8080",
		Mode:         gin.ReleaseMode,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	switch o.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return fmt.Errorf("unknown gin mode %q", o.Mode)
	}
	if o.Addr == "" {
		return fmt.Errorf("web listen address is required")
	}
	return nil
}

// Controller 控制器接口
type Controller interface {
	// MountRoutes 注册路由
	MountRoutes(router gin.IRouter)
}

var controllerType = reflect.TypeOf((*Controller)(nil)).Elem()

// route 延迟到引擎创建时注册的路由
type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// Builder Web 服务构建器（基于 Gin）
// 路由、中间件与控制器在 Server 创建时挂载到新的 gin.Engine 上。
type Builder struct {
	options     *Options
	configured  bool
	middlewares []gin.HandlerFunc
	routes      []route
	controllers []any // 控制器类型、构造函数或实例
	setup       []func(*gin.Engine)
	errs        []error
}

// NewBuilder 创建 Web 构建器
func NewBuilder() *Builder {
	return &Builder{options: NewDefaultOptions()}
}

// UseAddr 设置监听地址
func (b *Builder) UseAddr(addr string) *Builder {
	b.options.Addr = addr
	b.configured = true
	return b
}

// UsePort 设置端口
func (b *Builder) UsePort(port int) *Builder {
	return b.UseAddr(fmt.Sprintf(":%d", port))
}

// UseMode 设置 Gin 模式
func (b *Builder) UseMode(mode string) *Builder {
	b.options.Mode = mode
	b.configured = true
	return b
}

// UseOptions 整体设置选项
func (b *Builder) UseOptions(configure func(*Options)) *Builder {
	configure(b.options)
	b.configured = true
	return b
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.middlewares = append(b.middlewares, middleware...)
	return b
}

// Handle 注册路由
func (b *Builder) Handle(method, path string, handlers ...gin.HandlerFunc) *Builder {
	b.routes = append(b.routes, route{method: method, path: path, handlers: handlers})
	return b
}

// Get 注册 GET 路由
func (b *Builder) Get(path string, handlers ...gin.HandlerFunc) *Builder {
	return b.Handle(http.MethodGet, path, handlers...)
}

// Post 注册 POST 路由
func (b *Builder) Post(path string, handlers ...gin.HandlerFunc) *Builder {
	return b.Handle(http.MethodPost, path, handlers...)
}

// Put 注册 PUT 路由
func (b *Builder) Put(path string, handlers ...gin.HandlerFunc) *Builder {
	return b.Handle(http.MethodPut, path, handlers...)
}

// Delete 注册 DELETE 路由
func (b *Builder) Delete(path string, handlers ...gin.HandlerFunc) *Builder {
	return b.Handle(http.MethodDelete, path, handlers...)
}

// Patch 注册 PATCH 路由
func (b *Builder) Patch(path string, handlers ...gin.HandlerFunc) *Builder {
	return b.Handle(http.MethodPatch, path, handlers...)
}

// ConfigureEngine 在引擎创建后执行自定义设置（模板、静态文件、NoRoute 等）
func (b *Builder) ConfigureEngine(fn func(*gin.Engine)) *Builder {
	b.setup = append(b.setup, fn)
	return b
}

// AddControllers 注册控制器。传入参数可以是：
//  1. 构造函数 (例如 NewUserController)：登记到类型目录，参数由容器注入
//  2. reflect.Type：通过类型目录中的构造函数创建，结构体没有构造函数时使用零值
//  3. 实例：直接挂载
//
// 控制器本身不注册到容器，在 Server 创建时通过 di.CreateInstance 构造。
func (b *Builder) AddControllers(controllers ...any) *Builder {
	for _, c := range controllers {
		if err := checkController(c); err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		b.controllers = append(b.controllers, c)
	}
	return b
}

func checkController(c any) error {
	var t reflect.Type
	switch v := c.(type) {
	case nil:
		return fmt.Errorf("web: nil controller")
	case reflect.Type:
		t = v
	default:
		t = reflect.TypeOf(c)
		if t.Kind() == reflect.Func {
			if t.NumOut() == 0 {
				return fmt.Errorf("web: controller constructor %v returns nothing", t)
			}
			t = t.Out(0)
		}
	}
	if !t.Implements(controllerType) {
		return fmt.Errorf("web: %v does not implement web.Controller", t)
	}
	return nil
}
