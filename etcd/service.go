package etcd

import (
	"fmt"
	"sort"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/multierr"
)

// EtcdClientOptions etcd 客户端配置选项
type EtcdClientOptions struct {
	Name             string        // 客户端名称，即运行时中的组件名
	Endpoints        []string      // etcd 服务器地址列表
	DialTimeout      time.Duration // 连接超时时间
	Username         string        // 用户名（可选）
	Password         string        // 密码（可选）
	AutoSyncInterval time.Duration // 自动同步间隔（可选）
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *EtcdClientOptions {
	return &EtcdClientOptions{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (o *EtcdClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("etcd dial timeout must be positive")
	}
	return nil
}

// EtcdClientFactory 持有按名称注册的 etcd 客户端
type EtcdClientFactory struct {
	clients map[string]*clientv3.Client
	mu      sync.RWMutex
}

// NewEtcdClientFactory 创建客户端工厂
func NewEtcdClientFactory() *EtcdClientFactory {
	return &EtcdClientFactory{
		clients: make(map[string]*clientv3.Client),
	}
}

// Register 创建并注册 etcd 客户端。客户端惰性拨号，不会在此阻塞。
func (f *EtcdClientFactory) Register(opts EtcdClientOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.clients[opts.Name]; exists {
		return fmt.Errorf("etcd client '%s' already registered", opts.Name)
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:        opts.Endpoints,
		DialTimeout:      opts.DialTimeout,
		Username:         opts.Username,
		Password:         opts.Password,
		AutoSyncInterval: opts.AutoSyncInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to create etcd client '%s': %w", opts.Name, err)
	}
	f.clients[opts.Name] = client
	return nil
}

// Names 返回已注册的客户端名称
func (f *EtcdClientFactory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.clients))
	for name := range f.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get 按名称获取客户端
func (f *EtcdClientFactory) Get(name string) (*clientv3.Client, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.clients[name]
	return c, ok
}

// Close 关闭所有 etcd 客户端
func (f *EtcdClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	for name, client := range f.clients {
		if cerr := client.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close client '%s': %w", name, cerr))
		}
	}
	f.clients = make(map[string]*clientv3.Client)
	return err
}
