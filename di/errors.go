package di

import (
	"errors"
	"fmt"
	"reflect"
)

// 预定义错误，可配合 errors.Is 使用
var (
	ErrAmbiguous      = errors.New("ambiguous type match")
	ErrUnresolved     = errors.New("no value for required target")
	ErrNoContext      = errors.New("no component context")
	ErrDuplicateClaim = errors.New("target claimed more than once")
	ErrMixedClaims    = errors.New("member claimed both as a whole and per parameter")
	ErrPartialParams  = errors.New("not every parameter slot is wired")
	ErrArity          = errors.New("parameter count mismatch")
	ErrStaticMisuse   = errors.New("static injectant on a target that takes arguments")
	ErrUnknownMember  = errors.New("unknown member")
	ErrInvalidClass   = errors.New("invalid component class")
	ErrNoStrategy     = errors.New("no usable injection strategy")
)

// WiringError 表示某个 (组件, 成员) 的注入解析失败。
// 类型不匹配、按类型匹配歧义、必需目标无值都属于此类。
type WiringError struct {
	Component string
	Member    string
	Err       error
}

func (e *WiringError) Error() string {
	return fmt.Sprintf("di: wiring %s.%s: %v", e.Component, e.Member, e.Err)
}

func (e *WiringError) Unwrap() error {
	return e.Err
}

// ConfigurationError 是装配期发现的结构性错误，不可重试。
type ConfigurationError struct {
	Component string
	Member    string
	Err       error
}

func (e *ConfigurationError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("di: configuration of %s: %v", e.Component, e.Err)
	}
	return fmt.Sprintf("di: configuration of %s.%s: %v", e.Component, e.Member, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// TypeMismatchError 描述声明类型与实际值类型不兼容
type TypeMismatchError struct {
	Target   Target
	Expected reflect.Type
	Actual   reflect.Type
}

func (e *TypeMismatchError) Error() string {
	actual := "nil"
	if e.Actual != nil {
		actual = e.Actual.String()
	}
	return fmt.Sprintf("type mismatch on %s: expected %v, got %s", e.Target, e.Expected, actual)
}

// IsWiringError 判断 err 链中是否包含 WiringError
func IsWiringError(err error) bool {
	var we *WiringError
	return errors.As(err, &we)
}

// IsConfigurationError 判断 err 链中是否包含 ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func wiringError(component string, t Target, err error) *WiringError {
	return &WiringError{Component: component, Member: t.MemberString(), Err: err}
}

func configError(component, member string, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Component: component, Member: member, Err: fmt.Errorf(format, args...)}
}
