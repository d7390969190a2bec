package etcd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/compose/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/multierr"
)

// DefaultClientName 默认客户端的名称
const DefaultClientName = "default"

// ErrFactoryClosed 工厂关闭后再获取客户端
var ErrFactoryClosed = errors.New("etcd client factory closed")

// Options etcd 客户端配置选项
type Options struct {
	Name               string        `json:"name" yaml:"name"`                                     // 客户端名称
	Endpoints          []string      `json:"endpoints" yaml:"endpoints"`                           // etcd 服务器地址列表
	DialTimeout        time.Duration `json:"dial_timeout" yaml:"dial_timeout"`                     // 连接超时时间
	Username           string        `json:"username" yaml:"username"`                             // 用户名（可选）
	Password           string        `json:"password" yaml:"password"`                             // 密码（可选）
	AutoSyncInterval   time.Duration `json:"auto_sync_interval" yaml:"auto_sync_interval"`         // 自动同步间隔（可选）
	MaxCallSendMsgSize int           `json:"max_call_send_msg_size" yaml:"max_call_send_msg_size"` // 最大发送消息大小（可选）
	MaxCallRecvMsgSize int           `json:"max_call_recv_msg_size" yaml:"max_call_recv_msg_size"` // 最大接收消息大小（可选）
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *Options {
	return &Options{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Name == "" {
		return errors.New("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return errors.New("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return errors.New("etcd dial timeout must be positive")
	}
	return nil
}

func (o *Options) clientConfig() clientv3.Config {
	cfg := clientv3.Config{
		Endpoints:   o.Endpoints,
		DialTimeout: o.DialTimeout,
	}
	if o.Username != "" {
		cfg.Username = o.Username
		cfg.Password = o.Password
	}
	if o.AutoSyncInterval > 0 {
		cfg.AutoSyncInterval = o.AutoSyncInterval
	}
	if o.MaxCallSendMsgSize > 0 {
		cfg.MaxCallSendMsgSize = o.MaxCallSendMsgSize
	}
	if o.MaxCallRecvMsgSize > 0 {
		cfg.MaxCallRecvMsgSize = o.MaxCallRecvMsgSize
	}
	return cfg
}

// ClientFactory 按名称持有 etcd 客户端，客户端在第一次 Get 时创建。
type ClientFactory struct {
	options map[string]Options
	clients map[string]*clientv3.Client
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
		clients: make(map[string]*clientv3.Client),
		logger:  logger,
	}
	for _, opts := range configs {
		if _, exists := f.options[opts.Name]; exists {
			return nil, fmt.Errorf("etcd client '%s' already registered", opts.Name)
		}
		f.options[opts.Name] = opts
	}
	return f, nil
}

// Get 获取指定名称的 etcd 客户端
func (f *ClientFactory) Get(name string) (*clientv3.Client, error) {
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
		return nil, fmt.Errorf("etcd client '%s' not found", name)
	}

	client, err := clientv3.New(opts.clientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client '%s': %w", name, err)
	}
	f.clients[name] = client
	f.logger.Info("etcd client created",
		logging.Field{Key: "name", Value: name},
		logging.Field{Key: "endpoints", Value: fmt.Sprintf("%v", opts.Endpoints)})
	return client, nil
}

// Each 遍历已创建的客户端，按名称排序
func (f *ClientFactory) Each(fn func(name string, client *clientv3.Client)) {
	f.mu.Lock()
	names := make([]string, 0, len(f.clients))
	for name := range f.clients {
		names = append(names, name)
	}
	clients := make(map[string]*clientv3.Client, len(f.clients))
	for name, client := range f.clients {
		clients[name] = client
	}
	f.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		fn(name, clients[name])
	}
}

// Close 关闭所有已创建的客户端，跳过已经关闭的客户端。
func (f *ClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var errs error
	for name, client := range f.clients {
		// 已被单独关闭的客户端上下文已取消
		if client.Ctx().Err() != nil {
			continue
		}
		if err := client.Close(); err != nil && !errors.Is(err, context.Canceled) {
			errs = multierr.Append(errs, fmt.Errorf("failed to close etcd client '%s': %w", name, err))
		}
	}
	f.clients = make(map[string]*clientv3.Client)
	f.logger.Info("etcd clients closed")
	return errs
}
