package di

import (
	"fmt"
	"reflect"
)

// FactoryBinding 指定委托工厂：由另一个组件的方法产出本组件实例
type FactoryBinding struct {
	// Component 是工厂组件名
	Component string
	// Type 是工厂组件的类型（通常为指针类型，以便找到指针接收者方法）
	Type reflect.Type
	// Method 是工厂方法名
	Method string
}

// Definition 描述一个组件类：类型、构造方式、注入声明与上下文信息
type Definition struct {
	// Name 组件名，在容器内唯一
	Name string
	// Type 组件的结构体类型
	Type reflect.Type
	// Constructor 显式构造函数，返回 (*T) 或 (*T, error)
	Constructor any
	// ConstructorOptional 为 true 时，未装配的多参构造函数可以不参与注入
	ConstructorOptional bool
	// Factory 委托工厂，与 Constructor 互斥
	Factory *FactoryBinding
	// Bindings 是以代码声明的注入，与字段 tag 合并
	Bindings []Binding
	// Properties 是组件的上下文信息表，供 info= 注入使用
	Properties map[string]any
	// DependsOn 是额外声明的依赖
	DependsOn []string
	// IgnoreDependsOn 是要从依赖集合中剔除的组件名
	IgnoreDependsOn []string
}

// Describe 为类型 T 创建组件定义。T 可以是结构体或结构体指针。
func Describe[T any](name string, opts ...Option) *Definition {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return NewDefinition(name, t, opts...)
}

// NewDefinition 以反射类型创建组件定义
func NewDefinition(name string, t reflect.Type, opts ...Option) *Definition {
	def := &Definition{
		Name:       name,
		Type:       t,
		Properties: make(map[string]any),
	}
	for _, opt := range opts {
		opt(def)
	}
	return def
}

// Validate 检查定义的基本一致性
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &ConfigurationError{Component: "<unnamed>", Err: fmt.Errorf("%w: empty component name", ErrInvalidClass)}
	}
	if d.Type == nil || d.Type.Kind() != reflect.Struct {
		return configError(d.Name, "", "%w: %v is not a struct type", ErrInvalidClass, d.Type)
	}
	if d.Constructor != nil && d.Factory != nil {
		return configError(d.Name, ConstructorMember, "%w: both constructor and factory are set", ErrInvalidClass)
	}
	return nil
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s(%v)", d.Name, d.Type)
}
