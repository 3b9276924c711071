package di

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// Injectant 是一次解析的结果
type Injectant struct {
	// Value 是要注入的值，可以合法地为 nil
	Value any
	// Cacheable 为 true 时，结果可被 Caching 装饰器永久记忆
	Cacheable bool
	// Static 表示目标由零参构造/工厂路径填充，不注入任何值（区别于解析为 nil）
	Static bool
}

// NewInjectant 创建一个普通 Injectant
func NewInjectant(value any, cacheable bool) *Injectant {
	return &Injectant{Value: value, Cacheable: cacheable}
}

// StaticInjectant 创建一个零参路径标记
func StaticInjectant() *Injectant {
	return &Injectant{Static: true, Cacheable: true}
}

// ComponentContext 在单次解析调用中提供当前组件引用与进程内组件查找。
// 实现不得被策略保留到调用之外。
type ComponentContext interface {
	// Component 返回正在解析的组件名
	Component() string
	// Reference 返回正在进行的组件引用，无状态组件可为 nil
	Reference() any
	// Lookup 按名称查找组件的可注入值
	Lookup(name string) (any, error)
}

// Directory 是进程内的组件名目录，用于依赖计算与按类型匹配
type Directory interface {
	// Exists 报告该名称的组件当前是否存在
	Exists(name string) bool
	// NamesOf 返回可注入值可赋给 t 的全部组件名
	NamesOf(t reflect.Type) []string
}

// Strategy 把一个目标解析为 Injectant。
//
// Dependencies 返回 nil 表示"不适用"（OR 链继续向后），返回空的非 nil 切片表示
// "适用但无依赖"。Injectant 返回 nil 表示不适用；返回包装 nil 值的 Injectant
// 表示适用且解析为 nil。
type Strategy interface {
	Target() Target
	Optional() bool
	Dependencies() ([]string, error)
	Injectant(ctx ComponentContext) (*Injectant, error)
}

type baseStrategy struct {
	component string
	target    Target
	optional  bool
}

func (s *baseStrategy) Target() Target { return s.target }
func (s *baseStrategy) Optional() bool { return s.optional }

// referenceStrategy 按显式组件名注入
type referenceStrategy struct {
	baseStrategy
	name string
}

// NewReferenceStrategy 创建按显式引用注入的策略
func NewReferenceStrategy(component string, t Target, name string, optional bool) Strategy {
	return &referenceStrategy{baseStrategy{component, t, optional}, name}
}

func (s *referenceStrategy) Dependencies() ([]string, error) {
	return []string{s.name}, nil
}

func (s *referenceStrategy) Injectant(ctx ComponentContext) (*Injectant, error) {
	if ctx == nil {
		return nil, wiringError(s.component, s.target, ErrNoContext)
	}
	v, err := ctx.Lookup(s.name)
	if err != nil {
		return nil, wiringError(s.component, s.target, fmt.Errorf("reference %q: %w", s.name, err))
	}
	return NewInjectant(v, false), nil
}

// infoStrategy 从组件的上下文信息表中取值
type infoStrategy struct {
	baseStrategy
	key     string
	info    map[string]any
	coercer Coercer
}

// NewInfoStrategy 创建按上下文信息表注入的策略
func NewInfoStrategy(component string, t Target, key string, info map[string]any, coercer Coercer, optional bool) Strategy {
	if coercer == nil {
		coercer = YamlCoercer{}
	}
	return &infoStrategy{baseStrategy{component, t, optional}, key, info, coercer}
}

func (s *infoStrategy) Dependencies() ([]string, error) {
	if _, ok := s.info[s.key]; !ok {
		return nil, nil
	}
	return []string{}, nil
}

func (s *infoStrategy) Injectant(ComponentContext) (*Injectant, error) {
	raw, ok := s.info[s.key]
	if !ok {
		return nil, nil
	}
	v, err := convertValue(s.coercer, raw, s.target.Type())
	if err != nil {
		return nil, wiringError(s.component, s.target, fmt.Errorf("info %q: %w", s.key, err))
	}
	return NewInjectant(v, true), nil
}

// typeStrategy 按声明类型在目录中查找唯一匹配
type typeStrategy struct {
	baseStrategy
	directory Directory
}

// NewTypeStrategy 创建按类型注入的策略。没有匹配时不适用，多个匹配时报歧义。
func NewTypeStrategy(component string, t Target, dir Directory, optional bool) Strategy {
	return &typeStrategy{baseStrategy{component, t, optional}, dir}
}

func (s *typeStrategy) match() (string, error) {
	if s.directory == nil || s.target.Type() == nil {
		return "", nil
	}
	var names []string
	for _, n := range s.directory.NamesOf(s.target.Type()) {
		// 组件不能按类型注入自身
		if n != s.component {
			names = append(names, n)
		}
	}
	switch len(names) {
	case 0:
		return "", nil
	case 1:
		return names[0], nil
	default:
		sort.Strings(names)
		return "", wiringError(s.component, s.target, fmt.Errorf("%w: %v matches %v", ErrAmbiguous, s.target.Type(), names))
	}
}

func (s *typeStrategy) Dependencies() ([]string, error) {
	name, err := s.match()
	if err != nil || name == "" {
		return nil, err
	}
	return []string{name}, nil
}

func (s *typeStrategy) Injectant(ctx ComponentContext) (*Injectant, error) {
	name, err := s.match()
	if err != nil || name == "" {
		return nil, err
	}
	if ctx == nil {
		return nil, wiringError(s.component, s.target, ErrNoContext)
	}
	v, err := ctx.Lookup(name)
	if err != nil {
		return nil, wiringError(s.component, s.target, fmt.Errorf("type match %q: %w", name, err))
	}
	return NewInjectant(v, false), nil
}

// valueStrategy 注入由字面量构造出的值
type valueStrategy struct {
	baseStrategy
	literal string
	coercer Coercer
}

// NewValueStrategy 创建字面量策略
func NewValueStrategy(component string, t Target, literal string, coercer Coercer, optional bool) Strategy {
	if coercer == nil {
		coercer = YamlCoercer{}
	}
	return &valueStrategy{baseStrategy{component, t, optional}, literal, coercer}
}

func (s *valueStrategy) Dependencies() ([]string, error) {
	return []string{}, nil
}

func (s *valueStrategy) Injectant(ComponentContext) (*Injectant, error) {
	v, err := s.coercer.Coerce(s.literal, s.target.Type())
	if err != nil {
		return nil, wiringError(s.component, s.target, fmt.Errorf("value %q: %w", s.literal, err))
	}
	return NewInjectant(v, true), nil
}

// staticStrategy 标记零参构造路径
type staticStrategy struct {
	baseStrategy
}

// NewStaticStrategy 创建零参构造标记策略
func NewStaticStrategy(component string, t Target) Strategy {
	return &staticStrategy{baseStrategy{component: component, target: t}}
}

func (s *staticStrategy) Dependencies() ([]string, error) {
	return []string{}, nil
}

func (s *staticStrategy) Injectant(ComponentContext) (*Injectant, error) {
	return StaticInjectant(), nil
}

// convertValue 把信息表中的原始值转换为目标类型
func convertValue(c Coercer, raw any, t reflect.Type) (any, error) {
	if t == nil || raw == nil {
		return raw, nil
	}
	if rt := reflect.TypeOf(raw); rt.AssignableTo(t) {
		return raw, nil
	} else if rt.ConvertibleTo(t) && isNumeric(rt) && isNumeric(t) {
		return reflect.ValueOf(raw).Convert(t).Interface(), nil
	}
	if s, ok := raw.(string); ok {
		return c.Coerce(s, t)
	}
	if rc, ok := c.(interface {
		Convert(raw any, t reflect.Type) (any, error)
	}); ok {
		return rc.Convert(raw, t)
	}
	return nil, errors.New("cannot convert " + reflect.TypeOf(raw).String() + " to " + t.String())
}

func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
