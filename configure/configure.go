// Package configure 汇总各集成包的配置器，便于在一个 import 中使用。
package configure

import (
	"github.com/gocrud/compose/configure/cron"
	"github.com/gocrud/compose/configure/database"
	"github.com/gocrud/compose/configure/etcd"
	"github.com/gocrud/compose/configure/mongodb"
	"github.com/gocrud/compose/configure/redis"
	"github.com/gocrud/compose/configure/web"
	"github.com/gocrud/compose/hosting"
)

// Etcd 便捷导出 etcd 配置器
// 使用示例: builder.Configure(configure.Etcd(func(b *etcd.Builder) { ... }))
func Etcd(options func(*etcd.Builder)) hosting.Configurator {
	return etcd.Configure(options)
}

// Cron 便捷导出 cron 配置器
// 使用示例: builder.Configure(configure.Cron(func(b *cron.Builder) { ... }))
func Cron(options func(*cron.Builder)) hosting.Configurator {
	return cron.Configure(options)
}

// Web 便捷导出 web 配置器
// 使用示例: builder.Configure(configure.Web(func(b *web.Builder) { ... }))
func Web(options func(*web.Builder)) hosting.Configurator {
	return web.Configure(options)
}

// Redis 便捷导出 redis 配置器
// 使用示例: builder.Configure(configure.Redis(func(b *redis.Builder) { ... }))
func Redis(options func(*redis.Builder)) hosting.Configurator {
	return redis.Configure(options)
}

// Database 便捷导出数据库配置器
func Database(options func(*database.Builder)) hosting.Configurator {
	return database.Configure(options)
}

// MongoDB 便捷导出 MongoDB 配置器
func MongoDB(options func(*mongodb.Builder)) hosting.Configurator {
	return mongodb.Configure(options)
}
