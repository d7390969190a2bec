package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocrud/compose/logging"
	"github.com/gocrud/mgo"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/multierr"
)

// DefaultClientName 默认客户端的名称
const DefaultClientName = "default"

// ErrFactoryClosed 工厂关闭后再获取客户端
var ErrFactoryClosed = errors.New("mongo client factory closed")

// Options MongoDB 客户端配置选项
type Options struct {
	Name           string        `json:"name" yaml:"name"`
	URI            string        `json:"uri" yaml:"uri"`
	Database       string        `json:"database" yaml:"database"` // 默认数据库
	Username       string        `json:"username" yaml:"username"`
	Password       string        `json:"password" yaml:"password"`
	MaxPoolSize    uint64        `json:"max_pool_size" yaml:"max_pool_size"`
	MinPoolSize    uint64        `json:"min_pool_size" yaml:"min_pool_size"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"` // 单次操作超时，也用于断开连接
	Ping           bool          `json:"ping" yaml:"ping"`       // 创建时连接并 ping，失败则 Get 返回错误
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, uri string) *Options {
	return &Options{
		Name:           name,
		URI:            uri,
		Database:       "test",
		MaxPoolSize:    100,
		MinPoolSize:    0,
		ConnectTimeout: 10 * time.Second,
		Timeout:        10 * time.Second,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Name == "" {
		return errors.New("mongo client name is required")
	}
	if o.URI == "" {
		return errors.New("mongo uri is required")
	}
	if o.Database == "" {
		return errors.New("mongo database is required")
	}
	if o.MinPoolSize > o.MaxPoolSize && o.MaxPoolSize > 0 {
		return errors.New("mongo min pool size exceeds max pool size")
	}
	return nil
}

func (o *Options) clientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(o.URI)
	if o.Username != "" || o.Password != "" {
		opts.SetAuth(options.Credential{
			Username: o.Username,
			Password: o.Password,
		})
	}
	if o.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.MinPoolSize > 0 {
		opts.SetMinPoolSize(o.MinPoolSize)
	}
	if o.ConnectTimeout > 0 {
		opts.SetConnectTimeout(o.ConnectTimeout)
	}
	if o.Timeout > 0 {
		opts.SetTimeout(o.Timeout)
	}
	return opts
}

// Client 在 *mgo.Client 上绑定名称与默认数据库。
// Close 断开连接且可以重复调用，因此它可以同时被容器和工厂释放。
type Client struct {
	*mgo.Client
	name     string
	database string
	timeout  time.Duration
	closed   atomic.Bool
}

// Name 返回客户端名称
func (c *Client) Name() string { return c.name }

// DefaultDatabase 返回配置的默认数据库
func (c *Client) DefaultDatabase() *mgo.Database {
	return c.Database(c.database)
}

// Collection 返回默认数据库中的集合
func (c *Client) Collection(name string, opts ...mgo.CollectionOption) *mgo.Collection {
	return c.DefaultDatabase().Collection(name, opts...)
}

// HealthCheck 向主节点发送 ping
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Native().Ping(ctx, readpref.Primary())
}

// IsClosed 报告 Close 是否已被调用
func (c *Client) IsClosed() bool { return c.closed.Load() }

// Close 断开连接
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("failed to disconnect mongo client '%s': %w", c.name, err)
	}
	return nil
}

// connect 创建 mgo 客户端。开启 Ping 时由 mgo.NewClient 连接并验证，
// 否则只包装 mongo.Connect 的结果，第一次操作时才真正连接。
func connect(opts Options) (*mgo.Client, error) {
	if opts.Ping {
		timeout := opts.ConnectTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return mgo.NewClient(ctx, opts.URI, opts.clientOptions())
	}
	raw, err := connect(opts)
	if err != nil {
		return nil, err
	}
	return mgo.WrapClient(raw), nil
}

// ClientFactory 按名称持有 MongoDB 客户端，客户端在第一次 Get 时创建。
type ClientFactory struct {
	options map[string]Options
	clients map[string]*Client
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
		clients: make(map[string]*Client),
		logger:  logger,
	}
	for _, opts := range configs {
		if _, exists := f.options[opts.Name]; exists {
			return nil, fmt.Errorf("mongo client '%s' already registered", opts.Name)
		}
		f.options[opts.Name] = opts
	}
	return f, nil
}

// Get 获取指定名称的客户端
func (f *ClientFactory) Get(name string) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFactoryClosed
	}
	if client, ok := f.clients[name]; ok {
		return client, nil
	}
	opts, ok := f.options[name]
	if !ok {
		return nil, fmt.Errorf("mongo client '%s' not found", name)
	}

	raw, err := connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client '%s': %w", name, err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &Client{Client: raw, name: name, database: opts.Database, timeout: timeout}
	f.clients[name] = client

	f.logger.Info("mongo client created",
		logging.Field{Key: "name", Value: name},
		logging.Field{Key: "database", Value: opts.Database})
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

// Close 关闭所有已创建的客户端
func (f *ClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var errs error
	for _, client := range f.clients {
		errs = multierr.Append(errs, client.Close())
	}
	f.clients = make(map[string]*Client)
	f.logger.Info("mongo clients closed")
	return errs
}
