package database

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/compose/logging"
	"go.uber.org/multierr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultName 默认数据库的名称，它同时以 *gorm.DB 注册到容器
const DefaultName = "default"

// ErrFactoryClosed 工厂关闭后再获取数据库
var ErrFactoryClosed = errors.New("database factory closed")

// Options 数据库配置选项
type Options struct {
	Name         string         `json:"name" yaml:"name"`
	Driver       string         `json:"driver" yaml:"driver"` // 从配置加载时使用，目前支持 sqlite
	DSN          string         `json:"dsn" yaml:"dsn"`
	MaxIdleConns int            `json:"max_idle_conns" yaml:"max_idle_conns"`
	MaxOpenConns int            `json:"max_open_conns" yaml:"max_open_conns"`
	MaxLifetime  time.Duration  `json:"max_lifetime" yaml:"max_lifetime"`
	LogLevel     string         `json:"log_level" yaml:"log_level"` // silent/error/warn/info
	Dialector    gorm.Dialector `json:"-" yaml:"-"`
	GormConfig   *gorm.Config   `json:"-" yaml:"-"`
	AutoMigrate  []any          `json:"-" yaml:"-"` // 需要自动迁移的模型
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, dialector gorm.Dialector) *Options {
	return &Options{
		Name:         name,
		Driver:       "sqlite",
		Dialector:    dialector,
		MaxIdleConns: 10,
		MaxOpenConns: 100,
		MaxLifetime:  time.Hour,
		LogLevel:     "silent",
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Name == "" {
		return errors.New("database name is required")
	}
	if o.Dialector == nil {
		return errors.New("database dialector is required")
	}
	if _, err := parseLogLevel(o.LogLevel); err != nil {
		return err
	}
	return nil
}

// dialector 根据 Driver 和 DSN 创建驱动，用于配置文件驱动的数据库
func (o *Options) dialector() (gorm.Dialector, error) {
	if o.DSN == "" {
		return nil, errors.New("database dsn is required")
	}
	switch o.Driver {
	case "", "sqlite", "sqlite3":
		return sqlite.Open(o.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", o.Driver)
	}
}

func parseLogLevel(level string) (gormlogger.LogLevel, error) {
	switch level {
	case "", "silent":
		return gormlogger.Silent, nil
	case "error":
		return gormlogger.Error, nil
	case "warn":
		return gormlogger.Warn, nil
	case "info":
		return gormlogger.Info, nil
	default:
		return 0, fmt.Errorf("unknown database log level %q", level)
	}
}

// Factory 按名称持有数据库连接。连接在第一次 Get 时打开并执行自动迁移，
// Close 关闭全部连接。它以单例注册到容器，由 Provider 释放时关闭。
type Factory struct {
	options map[string]Options
	dbs     map[string]*gorm.DB
	logger  logging.Logger
	closed  bool
	mu      sync.Mutex
}

// NewFactory 创建数据库工厂，名称重复时返回错误
func NewFactory(configs []Options, logger logging.Logger) (*Factory, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	f := &Factory{
		options: make(map[string]Options, len(configs)),
		dbs:     make(map[string]*gorm.DB),
		logger:  logger,
	}
	for _, opts := range configs {
		if _, exists := f.options[opts.Name]; exists {
			return nil, fmt.Errorf("database '%s' already registered", opts.Name)
		}
		f.options[opts.Name] = opts
	}
	return f, nil
}

// Get 获取指定名称的数据库
func (f *Factory) Get(name string) (*gorm.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFactoryClosed
	}
	if db, ok := f.dbs[name]; ok {
		return db, nil
	}
	opts, ok := f.options[name]
	if !ok {
		return nil, fmt.Errorf("database '%s' not found", name)
	}

	db, err := open(opts)
	if err != nil {
		return nil, err
	}
	f.dbs[name] = db
	f.logger.Info("database opened",
		logging.Field{Key: "name", Value: name},
		logging.Field{Key: "dialector", Value: opts.Dialector.Name()},
		logging.Field{Key: "migrated", Value: len(opts.AutoMigrate)})
	return db, nil
}

// Names 返回已配置的数据库名称，按字典序
func (f *Factory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.options))
	for name := range f.options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close 关闭所有已打开的连接
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var errs error
	for name, db := range f.dbs {
		sqlDB, err := db.DB()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to get sql.DB for '%s': %w", name, err))
			continue
		}
		if err := sqlDB.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close database '%s': %w", name, err))
		}
	}
	f.dbs = make(map[string]*gorm.DB)
	f.logger.Info("database connections closed")
	return errs
}

func open(opts Options) (*gorm.DB, error) {
	cfg := opts.GormConfig
	if cfg == nil {
		level, err := parseLogLevel(opts.LogLevel)
		if err != nil {
			return nil, err
		}
		cfg = &gorm.Config{Logger: gormlogger.Default.LogMode(level)}
	}

	db, err := gorm.Open(opts.Dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", opts.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB for '%s': %w", opts.Name, err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	if len(opts.AutoMigrate) > 0 {
		if err := db.AutoMigrate(opts.AutoMigrate...); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("auto migrate failed for '%s': %w", opts.Name, err)
		}
	}
	return db, nil
}
