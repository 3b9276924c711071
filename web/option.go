package web

import (
	"github.com/gocrud/container/core"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
	"github.com/gocrud/container/pool"
)

// ComponentName 是 Web 主机在运行时中的组件名
const ComponentName = "web"

// BuilderOption 用于配置 Web Builder
type BuilderOption func(*Builder)

// WithPort 设置端口
func WithPort(port int) BuilderOption {
	return func(b *Builder) {
		b.UsePort(port)
	}
}

// WithPrefix 设置路由前缀
func WithPrefix(prefix string) BuilderOption {
	return func(b *Builder) {
		b.UsePrefix(prefix)
	}
}

// WithControllers 添加控制器
func WithControllers(controllers ...Controller) BuilderOption {
	return func(b *Builder) {
		b.AddControllers(controllers...)
	}
}

// New 启用 Web 诊断能力。
// 主机以单实例组件部署并作为托管服务运行，诊断路由默认挂载在 /debug/container 下。
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := NewBuilder().
			UseLogger(rt.Logger().WithCategory("Web")).
			AddControllers(NewDiagnostics(rt))
		for _, opt := range opts {
			opt(builder)
		}

		def := di.Describe[Host](ComponentName, di.WithConstructor(builder.Build))
		settings := core.Settings{Pool: pool.Options{MaxSize: 1, Lazy: true}}
		if err := rt.Deploy(def, settings); err != nil {
			return err
		}
		rt.Logger().Debug("web host registered", logging.F("component", ComponentName))
		return core.WithHostedService(ComponentName)(rt)
	}
}
