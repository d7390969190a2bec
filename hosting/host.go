package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/compose/config"
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/logging"
	"go.uber.org/multierr"
)

// Host 持有构建好的容器，负责托管服务的启动与关闭。
// Stop 停止托管服务之后释放容器，单例持有的连接在这里关闭。
type Host struct {
	provider        *di.Provider
	configuration   config.Configuration
	loggers         logging.LoggerFactory
	logger          logging.Logger
	environment     Environment
	shutdownTimeout time.Duration

	mu        sync.Mutex
	manager   *hostedServiceManager
	runCancel context.CancelFunc
	errCh     <-chan error
	stopCh    chan struct{}
	stopOnce  sync.Once
	stopped   bool
}

// Services 返回根 Provider
func (h *Host) Services() *di.Provider { return h.provider }

// Configuration 返回配置
func (h *Host) Configuration() config.Configuration { return h.configuration }

// Logger 返回 Host 的日志记录器
func (h *Host) Logger() logging.Logger { return h.logger }

// Environment 返回运行环境
func (h *Host) Environment() Environment { return h.environment }

// Start 解析所有 HostedService 并在后台启动，立即返回。
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.manager != nil {
		return errors.New("hosting: host already started")
	}
	if h.stopped {
		return errors.New("hosting: host already stopped")
	}

	services, err := di.ResolveAll[HostedService](h.provider)
	if err != nil {
		return fmt.Errorf("hosting: resolve hosted services: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.runCancel = cancel
	h.manager = newHostedServiceManager(services, h.logger)
	h.errCh = h.manager.startAll(runCtx)

	h.logger.Info("host started", logging.Field{Key: "environment", Value: h.environment.Name()})
	return nil
}

// Run 启动后阻塞，直到 ctx 取消、调用 Shutdown 或某个托管服务失败，然后优雅关闭。
// 返回托管服务的错误与关闭过程中的错误。
func (h *Host) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		h.logger.Info("host context done")
	case <-h.stopCh:
		h.logger.Info("host shutdown requested")
	case err := <-h.errCh:
		h.logger.Error("hosted service failed, shutting down", logging.Field{Key: "error", Value: err.Error()})
		runErr = err
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	return multierr.Append(runErr, h.Stop(stopCtx))
}

// Shutdown 请求 Run 返回，可重复调用
func (h *Host) Shutdown() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Stop 停止托管服务并释放容器。未启动的 Host 也可以调用，重复调用无副作用。
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true

	h.logger.Info("stopping host", logging.Field{Key: "timeout", Value: h.shutdownTimeout.String()})

	var errs error
	if h.manager != nil {
		h.runCancel()
		errs = multierr.Append(errs, h.manager.stopAll(ctx))
		errs = multierr.Append(errs, h.manager.wait(ctx))
	}

	errs = multierr.Append(errs, h.provider.Dispose())
	h.logger.Info("host stopped")

	// 日志工厂最后关闭，容器释放期间的日志仍能写出
	return multierr.Append(errs, h.loggers.Close())
}
