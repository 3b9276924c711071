package di

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
)

// Linked 是绑定在同一目标上的有序 OR 链。
// Dependencies 与 Injectant 都返回第一个非 nil 的结果。
type Linked []Strategy

// Target 实现 Strategy
func (l Linked) Target() Target {
	if len(l) == 0 {
		return Target{}
	}
	return l[0].Target()
}

// Optional 仅当链上全部策略都可选时为 true
func (l Linked) Optional() bool {
	if len(l) == 0 {
		return false
	}
	for _, s := range l {
		if !s.Optional() {
			return false
		}
	}
	return true
}

// Dependencies 实现 Strategy
func (l Linked) Dependencies() ([]string, error) {
	for _, s := range l {
		deps, err := s.Dependencies()
		if err != nil {
			return nil, err
		}
		if deps != nil {
			return deps, nil
		}
	}
	return nil, nil
}

// Injectant 实现 Strategy
func (l Linked) Injectant(ctx ComponentContext) (*Injectant, error) {
	for _, s := range l {
		inj, err := s.Injectant(ctx)
		if err != nil {
			return nil, err
		}
		if inj != nil {
			return inj, nil
		}
	}
	return nil, nil
}

// optionalStrategy 把可选目标上的装配失败转为"不注入"
type optionalStrategy struct {
	delegate  Strategy
	directory Directory
}

// Optional 包装 delegate；delegate 不可选时错误原样返回。
// dir 非空时，可选目标的依赖集合会剔除当前不存在的组件。
func Optional(delegate Strategy, dir Directory) Strategy {
	return &optionalStrategy{delegate: delegate, directory: dir}
}

func (s *optionalStrategy) Target() Target { return s.delegate.Target() }
func (s *optionalStrategy) Optional() bool { return s.delegate.Optional() }

func (s *optionalStrategy) Dependencies() ([]string, error) {
	deps, err := s.delegate.Dependencies()
	if !s.Optional() {
		return deps, err
	}
	if err != nil {
		if IsWiringError(err) {
			return []string{}, nil
		}
		return nil, err
	}
	if deps == nil || s.directory == nil {
		return deps, nil
	}
	present := make([]string, 0, len(deps))
	for _, name := range deps {
		if s.directory.Exists(name) {
			present = append(present, name)
		}
	}
	return present, nil
}

func (s *optionalStrategy) Injectant(ctx ComponentContext) (*Injectant, error) {
	inj, err := s.delegate.Injectant(ctx)
	if err != nil && s.Optional() && IsWiringError(err) {
		return nil, nil
	}
	return inj, err
}

type memo struct {
	inj *Injectant
	err error
}

// cachingStrategy 记忆第一个可缓存的成功结果或第一个装配失败
type cachingStrategy struct {
	delegate Strategy
	cell     atomic.Pointer[memo]
}

// Caching 包装 delegate。结果一旦写入不再覆盖，并发竞争时先写者胜出。
func Caching(delegate Strategy) Strategy {
	return &cachingStrategy{delegate: delegate}
}

func (s *cachingStrategy) Target() Target { return s.delegate.Target() }
func (s *cachingStrategy) Optional() bool { return s.delegate.Optional() }

func (s *cachingStrategy) Dependencies() ([]string, error) {
	return s.delegate.Dependencies()
}

func (s *cachingStrategy) Injectant(ctx ComponentContext) (*Injectant, error) {
	if m := s.cell.Load(); m != nil {
		return m.inj, m.err
	}
	inj, err := s.delegate.Injectant(ctx)
	switch {
	case err != nil:
		if !IsWiringError(err) {
			return nil, err
		}
	case inj == nil || !inj.Cacheable:
		return inj, nil
	}
	s.cell.CompareAndSwap(nil, &memo{inj: inj, err: err})
	m := s.cell.Load()
	return m.inj, m.err
}

// validatingStrategy 校验组装结果与目标的声明类型是否相容
type validatingStrategy struct {
	component string
	delegate  Strategy
}

// Validating 包装 delegate，校验 static 标记的合法性以及值的类型
func Validating(component string, delegate Strategy) Strategy {
	return &validatingStrategy{component: component, delegate: delegate}
}

func (s *validatingStrategy) Target() Target { return s.delegate.Target() }
func (s *validatingStrategy) Optional() bool { return s.delegate.Optional() }

func (s *validatingStrategy) Dependencies() ([]string, error) {
	return s.delegate.Dependencies()
}

func (s *validatingStrategy) Injectant(ctx ComponentContext) (*Injectant, error) {
	inj, err := s.delegate.Injectant(ctx)
	if err != nil || inj == nil {
		return inj, err
	}
	t := s.Target()
	if inj.Static {
		if !t.AcceptsStatic() {
			return nil, wiringError(s.component, t, ErrStaticMisuse)
		}
		return inj, nil
	}
	if err := CheckAssignable(t, inj.Value); err != nil {
		return nil, wiringError(s.component, t, err)
	}
	return inj, nil
}

// CheckAssignable 校验 value 能否赋给目标的声明类型。
// 数值类型之间不做隐式转换：int 目标只接受 int。
func CheckAssignable(t Target, value any) error {
	expected := t.Type()
	if expected == nil {
		if t.Arity() > 1 && t.Kind() != KindParameter {
			return fmt.Errorf("%w: %s takes %d parameters", ErrArity, t.MemberString(), t.Arity())
		}
		return nil
	}
	if value == nil {
		if nillable(expected) {
			return nil
		}
		return &TypeMismatchError{Target: t, Expected: expected}
	}
	actual := reflect.TypeOf(value)
	if !actual.AssignableTo(expected) {
		return &TypeMismatchError{Target: t, Expected: expected, Actual: actual}
	}
	return nil
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// Compose 按固定顺序组装策略链：Validating(Caching(Optional(Linked(chain))))
func Compose(component string, dir Directory, chain ...Strategy) Strategy {
	var inner Strategy
	if len(chain) == 1 {
		inner = chain[0]
	} else {
		inner = Linked(chain)
	}
	return Validating(component, Caching(Optional(inner, dir)))
}

// IsTypeMismatch 判断 err 链中是否包含 TypeMismatchError
func IsTypeMismatch(err error) bool {
	var tm *TypeMismatchError
	return errors.As(err, &tm)
}
