package core

import (
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
)

// Option 定义了修改 Runtime 状态的函数签名
// 这是框架唯一的扩展点
type Option func(rt *Runtime) error

// WithLogger 替换运行时日志记录器，应放在其他选项之前
func WithLogger(logger logging.Logger) Option {
	return func(rt *Runtime) error {
		rt.SetLogger(logger)
		return nil
	}
}

// WithValue 注册一个现成的值
func WithValue(name string, value any) Option {
	return func(rt *Runtime) error {
		return rt.Provide(name, value)
	}
}

// WithComponent 部署一个托管组件
func WithComponent(def *di.Definition, settings Settings) Option {
	return func(rt *Runtime) error {
		return rt.Deploy(def, settings)
	}
}
