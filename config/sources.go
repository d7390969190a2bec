package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// JSONFileSource JSON 文件配置源
type JSONFileSource struct {
	Path     string
	Optional bool
}

func (s *JSONFileSource) Name() string { return fmt.Sprintf("JSONFile(%s)", s.Path) }

func (s *JSONFileSource) Load() (map[string]any, error) {
	data, err := readOptional(s.Path, s.Optional)
	if err != nil || data == nil {
		return map[string]any{}, err
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return result, nil
}

// YAMLFileSource YAML 文件配置源
type YAMLFileSource struct {
	Path     string
	Optional bool
}

func (s *YAMLFileSource) Name() string { return fmt.Sprintf("YAMLFile(%s)", s.Path) }

func (s *YAMLFileSource) Load() (map[string]any, error) {
	data, err := readOptional(s.Path, s.Optional)
	if err != nil || data == nil {
		return map[string]any{}, err
	}
	result := make(map[string]any)
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return result, nil
}

func readOptional(path string, optional bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// EnvironmentSource 环境变量配置源。
// 去掉前缀后转为小写，"__" 分隔层级，例如 APP_DI__VALIDATE_ON_BUILD -> di:validate_on_build。
// 单个 "_" 保留在键名中，以便对应 validate_on_build 这类 yaml 键。
type EnvironmentSource struct {
	Prefix string
}

func (s *EnvironmentSource) Name() string { return fmt.Sprintf("Environment(%s)", s.Prefix) }

func (s *EnvironmentSource) Load() (map[string]any, error) {
	result := make(map[string]any)

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if s.Prefix != "" {
			if !strings.HasPrefix(key, s.Prefix) {
				continue
			}
			key = strings.TrimPrefix(key, s.Prefix)
		}
		key = strings.ToLower(strings.Trim(key, "_"))
		if key == "" {
			continue
		}
		setNestedValue(result, strings.Split(key, "__"), parseScalar(value))
	}

	return result, nil
}

// InMemorySource 内存配置源
type InMemorySource struct {
	Data map[string]any
}

func (s *InMemorySource) Name() string { return "InMemory" }

func (s *InMemorySource) Load() (map[string]any, error) {
	result := make(map[string]any)
	mergeMaps(result, s.Data)
	return result, nil
}

// EtcdSourceOptions etcd 配置源选项
type EtcdSourceOptions struct {
	Endpoints   []string      `yaml:"endpoints"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Prefix      string        `yaml:"prefix"`
	Timeout     time.Duration `yaml:"timeout"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

func (o EtcdSourceOptions) withDefaults() EtcdSourceOptions {
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Second
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = 5 * time.Second
	}
	return o
}

// EtcdSource 从 etcd 前缀下读取配置。
// 键中的 "/" 表示层级；值依次尝试按 JSON、YAML 解析，都失败时作为字符串。
type EtcdSource struct {
	Options EtcdSourceOptions
}

func (s *EtcdSource) Name() string { return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints) }

func (s *EtcdSource) Load() (map[string]any, error) {
	if len(s.Options.Endpoints) == 0 {
		return nil, fmt.Errorf("no etcd endpoints configured")
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.Options.Timeout)
	defer cancel()

	prefix := s.Options.Prefix
	if prefix == "" {
		prefix = "/"
	}
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", prefix, err)
	}

	result := make(map[string]any)
	for _, kv := range resp.Kvs {
		key := strings.Trim(strings.TrimPrefix(string(kv.Key), s.Options.Prefix), "/")
		if key == "" {
			continue
		}
		setNestedValue(result, strings.Split(key, "/"), decodeValue(kv.Value))
	}
	return result, nil
}

func decodeValue(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	if err := yaml.Unmarshal(raw, &v); err == nil && v != nil {
		return v
	}
	return string(raw)
}

// setNestedValue 按路径写入，已存在的 map 值与新值深度合并
func setNestedValue(data map[string]any, parts []string, value any) {
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	last := parts[len(parts)-1]
	if m, ok := value.(map[string]any); ok {
		if existing, ok := current[last].(map[string]any); ok {
			mergeMaps(existing, m)
			return
		}
	}
	current[last] = value
}

// parseScalar 把字符串尽量转换为 int、float 或 bool
func parseScalar(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
