package database

import (
	"fmt"

	"github.com/gocrud/compose/di"
)

// Migrations 描述某个数据库需要自动迁移的模型。
// 可以注册多个，工厂创建时汇总到对应数据库的 AutoMigrate 列表。
type Migrations struct {
	Database string
	Models   []any
}

// NewMigrations 创建默认数据库的迁移
func NewMigrations(models ...any) *Migrations {
	return &Migrations{Database: DefaultName, Models: models}
}

// NewMigrationsFor 创建指定数据库的迁移
func NewMigrationsFor(database string, models ...any) *Migrations {
	return &Migrations{Database: database, Models: models}
}

// applyMigrations 把容器中注册的全部 *Migrations 合并进配置，返回新的切片
func applyMigrations(p di.ServiceProvider, configs []Options) ([]Options, error) {
	migrations, err := di.ResolveAll[*Migrations](p)
	if err != nil {
		return nil, err
	}
	out := make([]Options, len(configs))
	copy(out, configs)

	for _, m := range migrations {
		found := false
		for i := range out {
			if out[i].Name != m.Database {
				continue
			}
			out[i].AutoMigrate = append(append([]any(nil), out[i].AutoMigrate...), m.Models...)
			found = true
		}
		if !found {
			return nil, fmt.Errorf("database: migrations for unknown database '%s'", m.Database)
		}
	}
	return out, nil
}
