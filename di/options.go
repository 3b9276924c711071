package di

import "reflect"

// Option 配置组件定义
type Option func(*Definition)

// WithConstructor 设置显式构造函数
func WithConstructor(fn any) Option {
	return func(d *Definition) {
		d.Constructor = fn
	}
}

// OptionalConstructor 允许多参构造函数在未装配时不参与注入
func OptionalConstructor() Option {
	return func(d *Definition) {
		d.ConstructorOptional = true
	}
}

// WithFactory 委托给组件 component 的 method 方法构造实例。
// typ 是工厂组件的类型，方法在其方法集中查找。
func WithFactory(component string, typ reflect.Type, method string) Option {
	return func(d *Definition) {
		d.Factory = &FactoryBinding{Component: component, Type: typ, Method: method}
	}
}

// WithBindings 追加以代码声明的注入
func WithBindings(bindings ...Binding) Option {
	return func(d *Definition) {
		d.Bindings = append(d.Bindings, bindings...)
	}
}

// WithProperties 合并上下文信息
func WithProperties(props map[string]any) Option {
	return func(d *Definition) {
		if d.Properties == nil {
			d.Properties = make(map[string]any, len(props))
		}
		for k, v := range props {
			d.Properties[k] = v
		}
	}
}

// WithProperty 设置单个上下文信息
func WithProperty(key string, value any) Option {
	return WithProperties(map[string]any{key: value})
}

// DependsOn 追加显式依赖
func DependsOn(names ...string) Option {
	return func(d *Definition) {
		d.DependsOn = append(d.DependsOn, names...)
	}
}

// IgnoreDependency 从依赖集合中剔除指定组件
func IgnoreDependency(names ...string) Option {
	return func(d *Definition) {
		d.IgnoreDependsOn = append(d.IgnoreDependsOn, names...)
	}
}
