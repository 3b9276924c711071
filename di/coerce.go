package di

import (
	"encoding"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Coercer 把字面量转换为目标类型的值
type Coercer interface {
	Coerce(literal string, t reflect.Type) (any, error)
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// YamlCoercer 以 YAML 语义解析字面量，与配置文件中的取值规则一致
type YamlCoercer struct{}

// Coerce 实现 Coercer
func (YamlCoercer) Coerce(literal string, t reflect.Type) (any, error) {
	if t == nil {
		return literal, nil
	}
	// 字符串类型原样使用，避免 "yes"、"1.0" 之类被 YAML 改写
	if t.Kind() == reflect.String {
		return reflect.ValueOf(literal).Convert(t).Interface(), nil
	}
	if t.Kind() == reflect.Interface && reflect.TypeOf(literal).AssignableTo(t) {
		return literal, nil
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(literal)); err != nil {
			return nil, fmt.Errorf("parse %q as %v: %w", literal, t, err)
		}
		return ptr.Elem().Interface(), nil
	}
	ptr := reflect.New(t)
	if err := yaml.Unmarshal([]byte(literal), ptr.Interface()); err != nil {
		return nil, fmt.Errorf("parse %q as %v: %w", literal, t, err)
	}
	return ptr.Elem().Interface(), nil
}

// Convert 通过 YAML 往返把任意结构的配置值转换为目标类型
func (YamlCoercer) Convert(raw any, t reflect.Type) (any, error) {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", raw, err)
	}
	ptr := reflect.New(t)
	if err := yaml.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("convert %T to %v: %w", raw, t, err)
	}
	return ptr.Elem().Interface(), nil
}
