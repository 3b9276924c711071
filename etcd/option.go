package etcd

import (
	"context"

	"github.com/gocrud/container/core"
	"github.com/gocrud/container/logging"
)

// BuilderOption 配置要注册的客户端
type BuilderOption func(*[]EtcdClientOptions)

// WithClient 添加 etcd 客户端，组件可以按名称或按 *clientv3.Client 类型注入
func WithClient(name string, configure ...func(*EtcdClientOptions)) BuilderOption {
	return func(list *[]EtcdClientOptions) {
		opts := NewDefaultOptions(name)
		for _, fn := range configure {
			fn(opts)
		}
		*list = append(*list, *opts)
	}
}

// New 启用 etcd 客户端，停止时关闭全部客户端
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		var list []EtcdClientOptions
		for _, opt := range opts {
			opt(&list)
		}

		factory := NewEtcdClientFactory()
		for _, o := range list {
			if err := factory.Register(o); err != nil {
				factory.Close()
				return err
			}
		}
		for _, name := range factory.Names() {
			client, _ := factory.Get(name)
			if err := rt.Provide(name, client); err != nil {
				factory.Close()
				return err
			}
		}

		logger := rt.Logger().WithCategory("Etcd")
		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			logger.Info("Closing etcd clients", logging.F("clients", len(list)))
			return factory.Close()
		})
		return nil
	}
}
