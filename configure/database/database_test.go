package database_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/gocrud/compose/config"
	"github.com/gocrud/compose/configure/database"
	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/hosting"
	"github.com/gocrud/compose/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name string
}

// UserRepository 模拟依赖数据库的服务
type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(name string) error {
	return r.DB.Create(&User{Name: name}).Error
}

func (r *UserRepository) Count() (int64, error) {
	var n int64
	err := r.DB.Model(&User{}).Count(&n).Error
	return n, err
}

func quietLogging(b *logging.LoggingBuilder) {
	b.AddWriter(&bytes.Buffer{}, &logging.TextFormatter{})
}

func TestDatabaseConfiguration(t *testing.T) {
	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		Configure(database.Configure(func(b *database.Builder) {
			b.Add(database.DefaultName, sqlite.Open("file::memory:"), func(o *database.Options) {
				o.MaxOpenConns = 1
				o.AutoMigrate = []any{&User{}}
			})
		})).
		ConfigureServices(func(s *di.ServiceCollection) {
			s.AddSingletonConstructor(di.TypeOf[*UserRepository](), NewUserRepository)
		}).
		Build()
	require.NoError(t, err)

	repo, err := di.Resolve[*UserRepository](host.Services())
	require.NoError(t, err)

	sqlDB, err := repo.DB.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, repo.Create("alice"))
	require.NoError(t, repo.Create("bob"))
	n, err := repo.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	db, err := di.Resolve[*gorm.DB](host.Services())
	require.NoError(t, err)
	assert.Same(t, repo.DB, db)

	require.NoError(t, host.Stop(context.Background()))
	// 连接随容器释放而关闭
	assert.Error(t, sqlDB.Ping())
}

func TestDatabaseFromConfiguration(t *testing.T) {
	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		ConfigureConfiguration(func(b *config.Builder) {
			b.AddInMemory(map[string]any{
				"database": map[string]any{
					"driver":         "sqlite",
					"dsn":            "file::memory:",
					"max_open_conns": 5,
				},
			})
		}).
		Configure(database.Configure(nil)).
		Build()
	require.NoError(t, err)
	defer host.Stop(context.Background())

	db, err := di.Resolve[*gorm.DB](host.Services())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 5, sqlDB.Stats().MaxOpenConnections)
	assert.Equal(t, "sqlite", db.Dialector.Name())
}

func TestDatabaseUnsupportedDriver(t *testing.T) {
	_, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		ConfigureConfiguration(func(b *config.Builder) {
			b.AddInMemory(map[string]any{
				"database": map[string]any{"driver": "oracle", "dsn": "x"},
			})
		}).
		Configure(database.Configure(nil)).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported database driver "oracle"`)
}

func TestDatabaseBuilderErrors(t *testing.T) {
	builder := database.NewBuilder()

	// 缺少驱动
	builder.Add("invalid", nil, nil)
	builder.Add("dup", sqlite.Open("a"), nil)
	builder.Add("dup", sqlite.Open("b"), nil)
	builder.Add("noisy", sqlite.Open("c"), func(o *database.Options) { o.LogLevel = "verbose" })

	_, err := builder.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialector is required")
	assert.Contains(t, err.Error(), "'dup' already configured")
	assert.Contains(t, err.Error(), `unknown database log level "verbose"`)
}

func TestFactoryNamedDatabases(t *testing.T) {
	factory, err := database.NewFactory([]database.Options{
		*database.NewDefaultOptions("orders", sqlite.Open("file::memory:")),
		*database.NewDefaultOptions("audit", sqlite.Open("file::memory:")),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"audit", "orders"}, factory.Names())

	orders, err := factory.Get("orders")
	require.NoError(t, err)
	again, err := factory.Get("orders")
	require.NoError(t, err)
	assert.Same(t, orders, again)

	_, err = factory.Get("missing")
	assert.Error(t, err)

	require.NoError(t, factory.Close())
	require.NoError(t, factory.Close())
	_, err = factory.Get("orders")
	assert.ErrorIs(t, err, database.ErrFactoryClosed)
}

type AuditLog struct {
	ID     uint
	Action string
}

func TestRegisteredMigrations(t *testing.T) {
	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		Configure(database.Configure(func(b *database.Builder) {
			b.Add(database.DefaultName, sqlite.Open("file::memory:"), func(o *database.Options) {
				o.MaxOpenConns = 1
			})
		})).
		ConfigureServices(func(s *di.ServiceCollection) {
			s.AddSingleton(di.TypeOf[*database.Migrations](), database.NewMigrations(&User{}))
			s.AddSingleton(di.TypeOf[*database.Migrations](), database.NewMigrations(&AuditLog{}))
		}).
		Build()
	require.NoError(t, err)
	defer host.Stop(context.Background())

	db, err := di.Resolve[*gorm.DB](host.Services())
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&User{}))
	assert.True(t, db.Migrator().HasTable(&AuditLog{}))
}

func TestMigrationsForUnknownDatabase(t *testing.T) {
	host, err := hosting.NewHostBuilder().
		ConfigureLogging(quietLogging).
		Configure(database.Configure(func(b *database.Builder) {
			b.Add(database.DefaultName, sqlite.Open("file::memory:"), nil)
		})).
		ConfigureServices(func(s *di.ServiceCollection) {
			s.AddSingleton(di.TypeOf[*database.Migrations](), database.NewMigrationsFor("reports", &User{}))
		}).
		Build()
	require.NoError(t, err)
	defer host.Stop(context.Background())

	_, err = di.Resolve[*gorm.DB](host.Services())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database 'reports'")
}
