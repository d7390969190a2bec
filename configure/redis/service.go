package redis

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/compose/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

// DefaultClientName 默认客户端的名称，它同时以 *redis.Client 和 redis.Cmdable 注册到容器
const DefaultClientName = "default"

// Options Redis 客户端配置选项
type Options struct {
	Name         string        `json:"name" yaml:"name"`                     // 客户端名称
	Addr         string        `json:"addr" yaml:"addr"`                     // Redis 服务器地址 (host:port)
	Password     string        `json:"password" yaml:"password"`             // 密码（可选）
	DB           int           `json:"db" yaml:"db"`                         // 数据库编号
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`     // 连接超时时间
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`     // 读取超时时间
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`   // 写入超时时间
	PoolSize     int           `json:"pool_size" yaml:"pool_size"`           // 连接池大小
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns"` // 最小空闲连接数
	MaxRetries   int           `json:"max_retries" yaml:"max_retries"`       // 最大重试次数
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *Options {
	return &Options{
		Name:         name,
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MaxRetries:   3,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Name == "" {
		return errors.New("redis client name is required")
	}
	if o.Addr == "" {
		return errors.New("redis address is required")
	}
	if o.DB < 0 {
		return errors.New("redis database number must be non-negative")
	}
	if o.DialTimeout <= 0 {
		return errors.New("redis dial timeout must be positive")
	}
	return nil
}

func (o *Options) redisOptions() *redis.Options {
	return &redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
		MinIdleConns: o.MinIdleConns,
		MaxRetries:   o.MaxRetries,
	}
}

// ClientFactory 按名称持有 Redis 客户端。
// 客户端在第一次 Get 时创建（go-redis 按需建立连接），Close 关闭全部客户端。
// 它以单例注册到容器，由 Provider 释放时关闭。
type ClientFactory struct {
	options map[string]Options
	clients map[string]*redis.Client
	logger  logging.Logger
	closed  bool
	mu      sync.Mutex
}

// NewClientFactory 创建客户端工厂，名称重复时返回错误
func NewClientFactory(configs []Options, logger logging.Logger) (*ClientFactory, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	f := &ClientFactory{
		options: make(map[string]Options, len(configs)),
		clients: make(map[string]*redis.Client),
		logger:  logger,
	}
	for _, opts := range configs {
		if _, exists := f.options[opts.Name]; exists {
			return nil, fmt.Errorf("redis client '%s' already registered", opts.Name)
		}
		f.options[opts.Name] = opts
	}
	return f, nil
}

// Get 获取指定名称的 Redis 客户端
func (f *ClientFactory) Get(name string) (*redis.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, redis.ErrClosed
	}
	if client, ok := f.clients[name]; ok {
		return client, nil
	}
	opts, ok := f.options[name]
	if !ok {
		return nil, fmt.Errorf("redis client '%s' not found", name)
	}

	client := redis.NewClient(opts.redisOptions())
	f.clients[name] = client
	f.logger.Info("redis client created",
		logging.Field{Key: "name", Value: name},
		logging.Field{Key: "addr", Value: opts.Addr},
		logging.Field{Key: "db", Value: opts.DB})
	return client, nil
}

// Names 返回已配置的客户端名称，按字典序
func (f *ClientFactory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.options))
	for name := range f.options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close 关闭所有已创建的客户端。已被单独关闭的客户端不算错误。
func (f *ClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var errs error
	for name, client := range f.clients {
		if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = multierr.Append(errs, fmt.Errorf("failed to close redis client '%s': %w", name, err))
		}
	}
	f.clients = make(map[string]*redis.Client)
	f.logger.Info("redis clients closed")
	return errs
}
