package hosting

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/logging"
	"go.uber.org/multierr"
)

// HostedService 托管服务接口
// Host 在独立的 goroutine 中调用 Start，Start 可以阻塞到 ctx 取消。
type HostedService interface {
	// Start 启动服务。返回非 context 错误时 Host 会开始关闭。
	Start(ctx context.Context) error

	// Stop 执行优雅关闭，必须遵守 ctx 的超时。
	Stop(ctx context.Context) error
}

var hostedServiceType = di.TypeOf[HostedService]()

// AddHostedService 把托管服务注册为 HostedService 单例。
// svc 可以是实例，也可以是构造函数（参数由容器注入）。
func AddHostedService(services *di.ServiceCollection, svc any) *di.ServiceCollection {
	if svc != nil && reflect.TypeOf(svc).Kind() == reflect.Func {
		return services.AddSingletonConstructor(hostedServiceType, svc)
	}
	return services.AddSingleton(hostedServiceType, svc)
}

// AddHostedServiceOf 把已注册的服务 T 同时登记为托管服务，两者解析到同一个实例。
func AddHostedServiceOf[T HostedService](services *di.ServiceCollection) *di.ServiceCollection {
	return services.AddSingleton(hostedServiceType, di.Factory(func(p di.ServiceProvider) (any, error) {
		return di.Resolve[T](p)
	}))
}

// NewTaskService 把一个阻塞函数包装成托管服务
func NewTaskService(task func(ctx context.Context) error) HostedService {
	return &taskService{task: task}
}

type taskService struct {
	task func(ctx context.Context) error
}

func (s *taskService) Start(ctx context.Context) error { return s.task(ctx) }
func (s *taskService) Stop(context.Context) error { return nil }

// hostedServiceManager 并发启动托管服务，按注册的逆序停止
type hostedServiceManager struct {
	services []HostedService
	logger   logging.Logger
	wg       sync.WaitGroup
}

func newHostedServiceManager(services []HostedService, logger logging.Logger) *hostedServiceManager {
	return &hostedServiceManager{services: services, logger: logger}
}

// startAll 启动所有服务，返回的通道接收第一个非取消类错误
func (m *hostedServiceManager) startAll(ctx context.Context) <-chan error {
	errCh := make(chan error, len(m.services))

	m.logger.Info("starting hosted services", logging.Field{Key: "count", Value: len(m.services)})

	for i, svc := range m.services {
		m.wg.Add(1)
		go func(index int, svc HostedService) {
			defer m.wg.Done()

			name := fmt.Sprintf("%T", svc)
			err := svc.Start(ctx)
			switch {
			case err == nil:
				m.logger.Debug("hosted service completed", logging.Field{Key: "service", Value: name})
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				m.logger.Debug("hosted service stopped", logging.Field{Key: "service", Value: name})
			default:
				m.logger.Error("hosted service failed",
					logging.Field{Key: "service", Value: name},
					logging.Field{Key: "index", Value: index},
					logging.Field{Key: "error", Value: err.Error()})
				errCh <- fmt.Errorf("hosting: %s: %w", name, err)
			}
		}(i, svc)
	}

	return errCh
}

// stopAll 逆序停止，收集所有错误
func (m *hostedServiceManager) stopAll(ctx context.Context) error {
	var errs error
	for i := len(m.services) - 1; i >= 0; i-- {
		svc := m.services[i]
		if err := svc.Stop(ctx); err != nil {
			m.logger.Error("failed to stop hosted service",
				logging.Field{Key: "service", Value: fmt.Sprintf("%T", svc)},
				logging.Field{Key: "error", Value: err.Error()})
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// wait 等待所有 Start 返回，ctx 到期时放弃等待
func (m *hostedServiceManager) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hosting: waiting for hosted services: %w", ctx.Err())
	}
}
