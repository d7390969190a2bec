// Package compose 是应用入口：在 hosting 之上提供最常用的两个函数。
package compose

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gocrud/compose/hosting"
)

// NewHostBuilder 创建 HostBuilder
func NewHostBuilder() *hosting.HostBuilder {
	return hosting.NewHostBuilder()
}

// Run 构建并运行 Host，直到收到 SIGINT/SIGTERM 或托管服务失败。
func Run(configure func(*hosting.HostBuilder)) error {
	builder := hosting.NewHostBuilder()
	if configure != nil {
		configure(builder)
	}

	host, err := builder.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return host.Run(ctx)
}
