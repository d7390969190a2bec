package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type redisSection struct {
	Addr        string        `yaml:"addr"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

func TestLayeredSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
redis:
  addr: localhost:6379
  db: 1
  dial_timeout: 2s
di:
  validate_on_build: false
`), 0o644))

	t.Setenv("COMPOSE_TEST_DI__VALIDATE_ON_BUILD", "true")
	t.Setenv("COMPOSE_TEST_REDIS__DB", "3")

	cfg, err := NewBuilder().
		AddInMemory(map[string]any{"redis": map[string]any{"addr": "default:6379", "password": "secret"}}).
		AddYAMLFile(path).
		AddYAMLFile(filepath.Join(t.TempDir(), "missing.yaml"), true).
		AddEnvironmentVariables("COMPOSE_TEST_").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Get("redis:addr"))
	assert.Equal(t, "secret", cfg.Get("redis.password"))

	validate, err := cfg.GetBool("di:validate_on_build")
	require.NoError(t, err)
	assert.True(t, validate)

	db, err := cfg.GetInt("redis:db")
	require.NoError(t, err)
	assert.Equal(t, 3, db)

	section, err := Load[redisSection](cfg, "redis")
	require.NoError(t, err)
	assert.Equal(t, redisSection{Addr: "localhost:6379", DB: 3, DialTimeout: 2 * time.Second}, section)

	assert.Equal(t, "localhost:6379", cfg.GetSection("redis").Get("addr"))
	assert.Equal(t, "fallback", cfg.GetWithDefault("redis:missing", "fallback"))
}

func TestMissingRequiredFile(t *testing.T) {
	_, err := NewBuilder().AddJSONFile(filepath.Join(t.TempDir(), "absent.json")).Build()
	assert.Error(t, err)
}

func TestJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"web":{"addr":":8080","mode":"release"}}`), 0o644))

	cfg, err := NewBuilder().AddJSONFile(path).Build()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Get("web:addr"))
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := NewBuilder().AddInMemory(map[string]any{"redis": map[string]any{"db": 2}}).Build()
	require.NoError(t, err)

	def := redisSection{Addr: "localhost:6379"}

	got, err := LoadOrDefault(cfg, "redis", def)
	require.NoError(t, err)
	assert.Equal(t, redisSection{Addr: "localhost:6379", DB: 2}, got)

	got, err = LoadOrDefault(cfg, "absent", def)
	require.NoError(t, err)
	assert.Equal(t, def, got)

	_, err = Load[redisSection](cfg, "absent")
	assert.Error(t, err)
}

func TestReload(t *testing.T) {
	source := &InMemorySource{Data: map[string]any{"level": "info"}}
	cfg, err := NewBuilder().Add(source).Build()
	require.NoError(t, err)

	reloaded := 0
	cfg.OnReload(func() { reloaded++ })

	source.Data = map[string]any{"level": "debug"}
	require.NoError(t, cfg.Reload())

	assert.Equal(t, "debug", cfg.Get("level"))
	assert.Equal(t, 1, reloaded)
}

func TestGetAllIsCopy(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": 1}}
	cfg, err := NewBuilder().AddInMemory(data).Build()
	require.NoError(t, err)

	all := cfg.GetAll()
	all["a"].(map[string]any)["b"] = 2

	b, err := cfg.GetInt("a:b")
	require.NoError(t, err)
	assert.Equal(t, 1, b)
	assert.Equal(t, 1, data["a"].(map[string]any)["b"])
}

func TestEtcdSourceRequiresEndpoints(t *testing.T) {
	_, err := NewBuilder().AddEtcd(EtcdSourceOptions{}).Build()
	assert.ErrorContains(t, err, "no etcd endpoints")
}

func TestConcurrentReads(t *testing.T) {
	cfg, err := NewBuilder().AddInMemory(map[string]any{"server": map[string]any{"port": 8080}}).Build()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				_ = cfg.Reload()
				return
			}
			port, err := cfg.GetInt("server:port")
			assert.NoError(t, err)
			assert.Equal(t, 8080, port)
		}(i)
	}
	wg.Wait()
}

func BenchmarkConfigGet(b *testing.B) {
	cfg, _ := NewBuilder().AddInMemory(map[string]any{
		"server": map[string]any{"host": "localhost", "port": 8080},
	}).Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg.Get("server:host")
	}
}
