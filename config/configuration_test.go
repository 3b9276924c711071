package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestValueStore(t *testing.T) {
	store := NewValueStore()
	store.Store(map[string]any{"key": "value"})
	assert.Equal(t, "value", store.Load()["key"])

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Load()
		}()
	}
	wg.Wait()
}

func TestPathCache(t *testing.T) {
	cache := &PathCache{}
	assert.Equal(t, []string{"a", "b", "c"}, cache.GetPathSegments("a:b.c"))
	assert.Equal(t, []string{"a", "b", "c"}, cache.GetPathSegments("a:b.c"))
}

func TestConfiguration_LayeredSources(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
server:
  host: localhost
  port: 8080
components:
  cart:
    stateful: true
    pool:
      maxSize: 2
`), 0o644))
	jsonPath := filepath.Join(dir, "override.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"server": {"port": 9090}}`), 0o644))

	t.Setenv("CONTAINER_TEST_COMPONENTS__CART__POOL__REENTRANT", "true")

	cfg, err := NewConfigurationBuilder().
		AddYamlFile(yamlPath).
		AddJsonFile(jsonPath).
		AddYamlFile(filepath.Join(dir, "missing.yaml"), true).
		AddEnvironmentVariables("CONTAINER_TEST_").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Get("server:host"))
	port, err := cfg.GetInt("server.port")
	require.NoError(t, err)
	assert.Equal(t, 9090, port)

	reentrant, err := cfg.GetBool("components:cart:pool:reentrant")
	require.NoError(t, err)
	assert.True(t, reentrant)
	assert.Equal(t, 2, mustInt(t, cfg, "components:cart:pool:maxSize"))

	assert.Equal(t, "fallback", cfg.GetWithDefault("server:missing", "fallback"))
	assert.True(t, cfg.Exists("components:cart"))
	assert.Equal(t, []string{"host", "port"}, cfg.Keys("server"))
	assert.Equal(t, "localhost", cfg.GetSection("server").Get("host"))
}

func TestConfiguration_MissingRequiredFile(t *testing.T) {
	_, err := NewConfigurationBuilder().AddYamlFile(filepath.Join(t.TempDir(), "nope.yaml")).Build()
	assert.Error(t, err)
}

func TestConfiguration_Bind(t *testing.T) {
	cfg, err := NewConfigurationBuilder().AddInMemory(map[string]any{
		"server": map[string]any{"host": "localhost", "port": 8080},
	}).Build()
	require.NoError(t, err)

	type server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	s, err := Load[server](cfg, "server")
	require.NoError(t, err)
	assert.Equal(t, server{Host: "localhost", Port: 8080}, s)

	_, err = Load[server](cfg, "absent")
	assert.Error(t, err)
}

func TestConfiguration_Reload(t *testing.T) {
	src := &InMemorySource{Data: map[string]any{"level": "info"}}
	cfg, err := NewConfigurationBuilder().Add(src).BuildReloadable()
	require.NoError(t, err)

	var reloaded int
	cfg.OnReload(func() { reloaded++ })

	src.Data["level"] = "debug"
	assert.Equal(t, "info", cfg.Get("level"))
	require.NoError(t, cfg.Reload())
	assert.Equal(t, "debug", cfg.Get("level"))
	assert.Equal(t, 1, reloaded)
}

func TestMergeMapsDoesNotAlias(t *testing.T) {
	src := map[string]any{"a": map[string]any{"b": 1}}
	dst := make(map[string]any)
	mergeMaps(dst, src)
	mergeMaps(dst, map[string]any{"a": map[string]any{"c": 2}})

	assert.Equal(t, map[string]any{"b": 1}, src["a"])
	assert.Equal(t, map[string]any{"b": 1, "c": 2}, dst["a"])
}

type fakeKV struct {
	clientv3.KV
	kvs map[string]string
}

func (f *fakeKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	resp := &clientv3.GetResponse{}
	for k, v := range f.kvs {
		resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(v)})
	}
	return resp, nil
}

func TestEtcdSource(t *testing.T) {
	src := NewEtcdSource(EtcdOptions{Prefix: "/app"})
	src.KV = &fakeKV{kvs: map[string]string{
		"/app/components/cart/pool":     `{"maxSize": 4, "lazy": true}`,
		"/app/components/cart/stateful": "true",
		"/app/components/cart/inject":   "Store: ref=store\nSetLimit#0: value=10\n",
		"/app/greeting":                 "hello: [world",
	}}

	cfg, err := NewConfigurationBuilder().Add(src).Build()
	require.NoError(t, err)

	assert.Equal(t, 4, mustInt(t, cfg, "components:cart:pool:maxSize"))
	lazy, err := cfg.GetBool("components:cart:pool:lazy")
	require.NoError(t, err)
	assert.True(t, lazy)
	assert.Equal(t, "ref=store", cfg.Get("components:cart:inject:Store"))
	assert.Equal(t, "hello: [world", cfg.Get("greeting"))
}

func mustInt(t *testing.T, cfg Configuration, key string) int {
	t.Helper()
	v, err := cfg.GetInt(key)
	require.NoError(t, err)
	return v
}
