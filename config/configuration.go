package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Configuration 分层的键值配置，键用 ":" 或 "." 分隔层级。
type Configuration interface {
	// Get 获取配置值，不存在时返回空串
	Get(key string) string
	// GetWithDefault 获取配置值，如果不存在则返回默认值
	GetWithDefault(key, defaultValue string) string
	// GetInt 获取整数配置值
	GetInt(key string) (int, error)
	// GetBool 获取布尔配置值
	GetBool(key string) (bool, error)
	// GetSection 获取配置节
	GetSection(key string) Configuration
	// Exists 判断键是否存在
	Exists(key string) bool
	// Bind 把 key 下的数据按 yaml 标签绑定到 target，key 为空时绑定全部
	Bind(key string, target any) error
	// GetAll 返回全部配置的副本
	GetAll() map[string]any
}

// Source 配置源
type Source interface {
	Load() (map[string]any, error)
	Name() string
}

// Builder 配置构建器，后添加的源覆盖先添加的
type Builder struct {
	sources []Source
	mu      sync.RWMutex
}

// NewBuilder 创建配置构建器
func NewBuilder() *Builder {
	return &Builder{sources: make([]Source, 0)}
}

// Add 添加配置源
func (b *Builder) Add(source Source) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
	return b
}

// AddJSONFile 添加 JSON 文件配置源
func (b *Builder) AddJSONFile(path string, optional ...bool) *Builder {
	return b.Add(&JSONFileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

// AddYAMLFile 添加 YAML 文件配置源
func (b *Builder) AddYAMLFile(path string, optional ...bool) *Builder {
	return b.Add(&YAMLFileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

// AddEnvironmentVariables 添加环境变量配置源，例如 APP_REDIS_ADDR -> redis:addr
func (b *Builder) AddEnvironmentVariables(prefix string) *Builder {
	return b.Add(&EnvironmentSource{Prefix: prefix})
}

// AddInMemory 添加内存配置源
func (b *Builder) AddInMemory(data map[string]any) *Builder {
	return b.Add(&InMemorySource{Data: data})
}

// AddEtcd 添加 etcd 配置源
func (b *Builder) AddEtcd(opts EtcdSourceOptions) *Builder {
	return b.Add(&EtcdSource{Options: opts.withDefaults()})
}

// Build 依次加载所有配置源
func (b *Builder) Build() (*Root, error) {
	b.mu.RLock()
	sources := append([]Source(nil), b.sources...)
	b.mu.RUnlock()

	root := &Root{sources: sources}
	if err := root.Reload(); err != nil {
		return nil, err
	}
	return root, nil
}

// Root 是可重新加载的根配置。读取无锁，Reload 原子替换整份数据。
type Root struct {
	sources  []Source
	data     atomic.Pointer[map[string]any]
	mu       sync.Mutex
	onReload []func()
}

// Reload 重新加载全部配置源；失败时保留旧数据
func (r *Root) Reload() error {
	merged := make(map[string]any)
	for _, source := range r.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("config: load %s: %w", source.Name(), err)
		}
		mergeMaps(merged, data)
	}
	r.data.Store(&merged)

	r.mu.Lock()
	callbacks := append([]func(){}, r.onReload...)
	r.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnReload 注册重新加载后的回调
func (r *Root) OnReload(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = append(r.onReload, fn)
}

func (r *Root) snapshot() map[string]any {
	if p := r.data.Load(); p != nil {
		return *p
	}
	return nil
}

func (r *Root) section() *section { return &section{data: r.snapshot()} }

func (r *Root) Get(key string) string { return r.section().Get(key) }
func (r *Root) GetWithDefault(key, def string) string { return r.section().GetWithDefault(key, def) }
func (r *Root) GetInt(key string) (int, error) { return r.section().GetInt(key) }
func (r *Root) GetBool(key string) (bool, error) { return r.section().GetBool(key) }
func (r *Root) GetSection(key string) Configuration { return r.section().GetSection(key) }
func (r *Root) Exists(key string) bool { return r.section().Exists(key) }
func (r *Root) Bind(key string, target any) error { return r.section().Bind(key, target) }
func (r *Root) GetAll() map[string]any { return r.section().GetAll() }

// section 是某一时刻配置数据的只读视图
type section struct {
	data map[string]any
}

func (c *section) Get(key string) string {
	switch v := c.lookup(key).(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (c *section) GetWithDefault(key, defaultValue string) string {
	if value := c.Get(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *section) GetInt(key string) (int, error) {
	switch v := c.lookup(key).(type) {
	case nil:
		return 0, fmt.Errorf("config: key %s not found", key)
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("config: cannot convert %v to int", v)
	}
}

func (c *section) GetBool(key string) (bool, error) {
	switch v := c.lookup(key).(type) {
	case nil:
		return false, fmt.Errorf("config: key %s not found", key)
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("config: cannot convert %v to bool", v)
	}
}

func (c *section) GetSection(key string) Configuration {
	if m, ok := c.lookup(key).(map[string]any); ok {
		return &section{data: m}
	}
	return &section{data: map[string]any{}}
}

func (c *section) Exists(key string) bool {
	return c.lookup(key) != nil
}

func (c *section) Bind(key string, target any) error {
	data := c.lookup(key)
	if data == nil {
		return fmt.Errorf("config: key %s not found", key)
	}

	// 经 yaml 往返绑定，支持 yaml 标签与 "5s" 形式的 time.Duration
	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("config: marshal %s: %w", key, err)
	}
	if err := yaml.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("config: bind %s: %w", key, err)
	}
	return nil
}

func (c *section) GetAll() map[string]any {
	result := make(map[string]any)
	mergeMaps(result, c.data)
	return result
}

func (c *section) lookup(path string) any {
	if path == "" {
		if c.data == nil {
			return nil
		}
		return c.data
	}

	current := any(c.data)
	for _, part := range pathSegments(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// pathCache 缓存键路径的切分结果
var pathCache sync.Map

func pathSegments(path string) []string {
	if v, ok := pathCache.Load(path); ok {
		return v.([]string)
	}
	parts := strings.Split(strings.ReplaceAll(path, ":", "."), ".")
	pathCache.Store(path, parts)
	return parts
}

// mergeMaps 深度合并，src 覆盖 dst；嵌套 map 会被复制，不与 src 共享
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		if !srcIsMap {
			dst[k] = v
			continue
		}
		dstMap, ok := dst[k].(map[string]any)
		if !ok {
			dstMap = make(map[string]any, len(srcMap))
			dst[k] = dstMap
		}
		mergeMaps(dstMap, srcMap)
	}
}

// Load 把配置节绑定到新的 T，section 为空时绑定全部
func Load[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}

// LoadOrDefault 与 Load 相同，节不存在时返回 def
func LoadOrDefault[T any](cfg Configuration, section string, def T) (T, error) {
	if !cfg.Exists(section) {
		return def, nil
	}
	t := def
	err := cfg.Bind(section, &t)
	return t, err
}
