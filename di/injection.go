package di

import (
	"errors"
	"fmt"
	"reflect"
)

// ConstructorInjection 是一次已解析的构造：零参构造、构造函数调用或委托工厂方法调用
type ConstructorInjection struct {
	component string
	target    Target
	owner     reflect.Type
	fn        reflect.Value // 构造函数或已绑定接收者的工厂方法；隐式构造时无效
	args      []reflect.Value
	static    bool
}

// Target 返回构造槽位目标
func (ci *ConstructorInjection) Target() Target { return ci.target }

// Static 报告是否为零参路径
func (ci *ConstructorInjection) Static() bool { return ci.static }

// Invoke 构造实例，返回 *T（或工厂方法声明的结果类型）
func (ci *ConstructorInjection) Invoke() (instance any, err error) {
	if !ci.fn.IsValid() {
		return reflect.New(ci.owner).Interface(), nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("di: constructing %s panicked: %v", ci.component, r)
		}
	}()

	results := ci.fn.Call(ci.args)
	if len(results) == 0 {
		return nil, fmt.Errorf("di: constructor of %s returned no values", ci.component)
	}

	// 检查 error
	if len(results) > 1 {
		last := results[len(results)-1]
		if last.Type().Implements(errorType) && !last.IsNil() {
			return nil, fmt.Errorf("di: constructing %s: %w", ci.component, last.Interface().(error))
		}
	}

	// 检查 nil
	first := results[0]
	if nillable(first.Type()) && first.IsNil() {
		return nil, fmt.Errorf("di: constructor of %s returned nil instance", ci.component)
	}
	// 值类型结果转为指针，保证后续字段注入可寻址
	if first.Type() == ci.owner {
		ptr := reflect.New(ci.owner)
		ptr.Elem().Set(first)
		return ptr.Interface(), nil
	}
	return first.Interface(), nil
}

// SetterInjection 是一次已解析的字段赋值或 setter 调用
type SetterInjection struct {
	component string
	target    Target
	args      []reflect.Value
}

// Target 返回成员目标
func (si *SetterInjection) Target() Target { return si.target }

// Apply 把值注入 instance，instance 必须是 *T
func (si *SetterInjection) Apply(instance any) (err error) {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Type() != si.target.Owner() {
		return wiringError(si.component, si.target, fmt.Errorf("cannot inject into %T", instance))
	}

	if si.target.Kind() == KindField {
		v.Elem().FieldByName(si.target.Member()).Set(si.args[0])
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = wiringError(si.component, si.target, fmt.Errorf("panic: %v", r))
		}
	}()
	results := v.MethodByName(si.target.Member()).Call(si.args)
	if len(results) == 1 && !results[0].IsNil() {
		return wiringError(si.component, si.target, results[0].Interface().(error))
	}
	return nil
}

// newConstructorInjection 把构造槽位的解析结果转成可调用的构造
func newConstructorInjection(def *Definition, ts *Targets, sp *slotPlan, args []*Injectant, ctx ComponentContext) (*ConstructorInjection, error) {
	ci := &ConstructorInjection{component: def.Name, target: sp.target, owner: def.Type}

	// 零参路径
	if sp.target.Arity() == 0 {
		if len(args) != 1 || !args[0].Static {
			return nil, wiringError(def.Name, sp.target, fmt.Errorf("%w: zero-argument %s received %s", ErrArity, sp.target.MemberString(), describeArgs(args)))
		}
		ci.static = true
	} else {
		for _, a := range args {
			if a.Static {
				return nil, wiringError(def.Name, sp.target, ErrStaticMisuse)
			}
		}
		ci.args = toValues(ts.constructFn, args)
	}

	switch {
	case def.Constructor != nil:
		ci.fn = reflect.ValueOf(def.Constructor)
	case def.Factory != nil:
		if ctx == nil {
			return nil, wiringError(def.Name, sp.target, ErrNoContext)
		}
		recv, err := ctx.Lookup(def.Factory.Component)
		if err != nil {
			return nil, wiringError(def.Name, sp.target, fmt.Errorf("factory %q: %w", def.Factory.Component, err))
		}
		m := reflect.ValueOf(recv).MethodByName(def.Factory.Method)
		if !m.IsValid() {
			return nil, wiringError(def.Name, sp.target, fmt.Errorf("%w: %T has no method %s", ErrUnknownMember, recv, def.Factory.Method))
		}
		ci.fn = m
	}
	return ci, nil
}

func newSetterInjection(def *Definition, sp *slotPlan, args []*Injectant) (*SetterInjection, error) {
	for _, a := range args {
		if a.Static {
			return nil, wiringError(def.Name, sp.target, ErrStaticMisuse)
		}
	}
	si := &SetterInjection{component: def.Name, target: sp.target}
	if sp.target.Kind() == KindField {
		si.args = []reflect.Value{toValue(sp.target.Type(), args[0].Value)}
		return si, nil
	}
	m, ok := reflect.PointerTo(def.Type).MethodByName(sp.target.Member())
	if !ok {
		return nil, wiringError(def.Name, sp.target, ErrUnknownMember)
	}
	si.args = toValues(methodSignature(m.Type), args)
	return si, nil
}

func toValues(fnType reflect.Type, args []*Injectant) []reflect.Value {
	values := make([]reflect.Value, len(args))
	for i, a := range args {
		values[i] = toValue(fnType.In(i), a.Value)
	}
	return values
}

func toValue(t reflect.Type, v any) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}

// IsUnresolved 判断 err 是否为必需目标无值
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolved)
}
