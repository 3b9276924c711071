package config

import (
	"fmt"

	"github.com/gocrud/container/core"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
)

// ConfigurationName 是配置在运行时目录中的名称
const ConfigurationName = "configuration"

// WithConfiguration 把配置注册到运行时，组件可以按名称或类型注入 Configuration
func WithConfiguration(cfg Configuration) core.Option {
	return func(rt *core.Runtime) error {
		if err := rt.Provide(ConfigurationName, cfg); err != nil {
			return err
		}
		if r, ok := cfg.(Reloadable); ok {
			logger := rt.Logger()
			r.OnReload(func() {
				logger.Info("configuration reloaded")
			})
		}
		return nil
	}
}

// WithComponent 按 components:<name> 节配置并部署组件
func WithComponent(cfg Configuration, def *di.Definition) core.Option {
	return func(rt *core.Runtime) error {
		s, err := ComponentSettingsFor(cfg, def.Name)
		if err != nil {
			return err
		}
		if err := s.Apply(def); err != nil {
			return err
		}
		rt.Logger().Debug("component configured",
			logging.F("component", def.Name),
			logging.F("bindings", len(s.Inject)))
		return rt.Deploy(def, s.Settings())
	}
}

// Bind 将配置节绑定到 *T 并以 name 注册到运行时
func Bind[T any](cfg Configuration, section, name string) core.Option {
	return func(rt *core.Runtime) error {
		settings, err := Load[T](cfg, section)
		if err != nil {
			return fmt.Errorf("config: failed to bind section '%s': %w", section, err)
		}
		return rt.Provide(name, &settings)
	}
}
