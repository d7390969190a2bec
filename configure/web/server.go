package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/logging"
)

// Server 基于 Gin 的 HTTP 托管服务
type Server struct {
	options Options
	engine  *gin.Engine
	server  *http.Server
	logger  logging.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// newServer 创建引擎并挂载路由与控制器。控制器通过 di.CreateInstance 构造，
// 不会被容器缓存。
func newServer(p di.ServiceProvider, b *Builder, logger logging.Logger) (*Server, error) {
	gin.SetMode(b.options.Mode)

	engine := gin.New()
	// 默认中间件：恢复 panic
	engine.Use(gin.Recovery())
	if b.options.AccessLog {
		engine.Use(accessLog(logger))
	}
	engine.Use(b.middlewares...)

	for _, r := range b.routes {
		engine.Handle(r.method, r.path, r.handlers...)
	}
	for _, fn := range b.setup {
		fn(engine)
	}

	for _, item := range b.controllers {
		ctrl, err := createController(p, item)
		if err != nil {
			return nil, err
		}
		ctrl.MountRoutes(engine)
		logger.Debug("controller mounted", logging.Field{Key: "controller", Value: fmt.Sprintf("%T", ctrl)})
	}

	return &Server{
		options: *b.options,
		engine:  engine,
		server: &http.Server{
			Handler:        engine,
			ReadTimeout:    b.options.ReadTimeout,
			WriteTimeout:   b.options.WriteTimeout,
			IdleTimeout:    b.options.IdleTimeout,
			MaxHeaderBytes: b.options.MaxHeaderBytes,
		},
		logger: logger,
		ready:  make(chan struct{}),
	}, nil
}

func createController(p di.ServiceProvider, item any) (Controller, error) {
	var inst any
	switch v := item.(type) {
	case reflect.Type:
		created, err := di.CreateInstance(p, v)
		if err != nil {
			return nil, fmt.Errorf("web: create controller %v: %w", v, err)
		}
		inst = created
	default:
		t := reflect.TypeOf(item)
		if t.Kind() != reflect.Func {
			inst = item
			break
		}
		// 构造函数已登记到类型目录，按产出类型激活
		created, err := di.CreateInstance(p, t.Out(0))
		if err != nil {
			return nil, fmt.Errorf("web: create controller %v: %w", t.Out(0), err)
		}
		inst = created
	}
	ctrl, ok := inst.(Controller)
	if !ok {
		return nil, fmt.Errorf("web: %T does not implement web.Controller", inst)
	}
	return ctrl, nil
}

// Handler 返回 HTTP 处理器，便于在测试中直接调用
func (s *Server) Handler() http.Handler { return s.engine }

// Engine 获取 Gin 引擎（用于高级定制）
func (s *Server) Engine() *gin.Engine { return s.engine }

// Ready 在开始监听后关闭
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr 返回实际监听地址，未启动时返回配置的地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.options.Addr
}

// Start 实现 HostedService：监听并阻塞到服务器关闭
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.options.Addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.options.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("web server listening", logging.Field{Key: "address", Value: ln.Addr().String()})

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 实现 HostedService：优雅关闭，等待进行中的请求或 ctx 到期
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping web server")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown web server gracefully",
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	s.logger.Info("web server stopped")
	return nil
}

// accessLog 以 Info 级别记录每个请求
func accessLog(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			logging.Field{Key: "method", Value: c.Request.Method},
			logging.Field{Key: "path", Value: c.Request.URL.Path},
			logging.Field{Key: "status", Value: c.Writer.Status()},
			logging.Field{Key: "latency", Value: time.Since(start).String()},
			logging.Field{Key: "client_ip", Value: c.ClientIP()})
	}
}
