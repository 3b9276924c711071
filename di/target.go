package di

import (
	"fmt"
	"reflect"
)

// MemberKind 是可注入成员的种类
type MemberKind int

const (
	KindField MemberKind = iota
	KindMethod
	KindConstructor
	KindParameter
)

func (k MemberKind) String() string {
	switch k {
	case KindField:
		return "FIELD"
	case KindMethod:
		return "METHOD"
	case KindConstructor:
		return "CONSTRUCTOR"
	case KindParameter:
		return "PARAMETER"
	default:
		return fmt.Sprintf("MemberKind(%d)", int(k))
	}
}

// ConstructorMember 是构造函数在成员表中的名称。
// 导出的字段和方法均以大写开头，不会与之冲突。
const ConstructorMember = "new"

// Target 描述类上一个可注入的位置（字段、setter、构造函数、工厂方法或它们的参数）。
// Target 是不可变的值类型，可直接作为 map 键；相等性由 owner、成员与参数下标决定。
type Target struct {
	owner  reflect.Type
	kind   MemberKind
	member string
	parent MemberKind // 仅 KindParameter：所属可执行成员的种类
	index  int        // 参数下标，非参数为 -1
	arity  int        // 可执行成员的参数个数；参数目标记录所属成员的参数个数
	typ    reflect.Type
}

// NewFieldTarget 创建字段目标
func NewFieldTarget(owner reflect.Type, name string, typ reflect.Type) Target {
	return Target{owner: owner, kind: KindField, member: name, index: -1, typ: typ}
}

// NewMethodTarget 创建方法目标。fn 为不含接收者的方法签名。
func NewMethodTarget(owner reflect.Type, name string, fn reflect.Type) Target {
	return executableTarget(owner, KindMethod, name, fn)
}

// NewConstructorTarget 创建构造函数目标。fn 为构造函数签名，nil 表示隐式零参构造。
func NewConstructorTarget(owner reflect.Type, fn reflect.Type) Target {
	if fn == nil {
		return Target{owner: owner, kind: KindConstructor, member: ConstructorMember, index: -1, typ: reflect.PointerTo(owner)}
	}
	return executableTarget(owner, KindConstructor, ConstructorMember, fn)
}

func executableTarget(owner reflect.Type, kind MemberKind, name string, fn reflect.Type) Target {
	t := Target{owner: owner, kind: kind, member: name, index: -1, arity: fn.NumIn()}
	switch t.arity {
	case 0:
		if fn.NumOut() > 0 {
			t.typ = fn.Out(0)
		}
	case 1:
		// 单参成员的整体声明类型即该参数的类型
		t.typ = fn.In(0)
	}
	return t
}

// Param 返回可执行成员第 i 个参数的目标
func (t Target) Param(i int, typ reflect.Type) Target {
	return Target{
		owner:  t.owner,
		kind:   KindParameter,
		member: t.member,
		parent: t.kind,
		index:  i,
		arity:  t.arity,
		typ:    typ,
	}
}

// Executable 返回参数目标所属的成员目标；非参数目标返回自身
func (t Target) Executable() Target {
	if t.kind != KindParameter {
		return t
	}
	e := Target{owner: t.owner, kind: t.parent, member: t.member, index: -1, arity: t.arity}
	if t.arity == 1 {
		e.typ = t.typ
	}
	return e
}

func (t Target) Owner() reflect.Type { return t.owner }
func (t Target) Kind() MemberKind    { return t.kind }
func (t Target) Member() string      { return t.member }
func (t Target) Index() int          { return t.index }
func (t Target) Arity() int          { return t.arity }

// Type 返回声明的值类型。多参成员的整体目标没有单一类型，返回 nil。
func (t Target) Type() reflect.Type { return t.typ }

// IsZero 报告 t 是否为零值
func (t Target) IsZero() bool { return t.owner == nil }

// AcceptsStatic 报告该目标是否为零参的构造/工厂路径
func (t Target) AcceptsStatic() bool {
	return (t.kind == KindConstructor || t.kind == KindMethod) && t.arity == 0
}

// MemberString 返回不含 owner 的成员描述，例如 "SetDB#1"
func (t Target) MemberString() string {
	if t.kind == KindParameter {
		return fmt.Sprintf("%s#%d", t.member, t.index)
	}
	return t.member
}

func (t Target) String() string {
	if t.owner == nil {
		return t.MemberString()
	}
	return t.owner.Name() + "." + t.MemberString()
}

// Targets 是一个类全部可注入位置的枚举结果，每个定义只计算一次
type Targets struct {
	owner       reflect.Type
	construct   Target
	constructFn reflect.Type
	members     map[string]Target
	params      map[string][]Target
	order       []string
}

// Construct 返回构造槽位（构造函数、委托工厂方法或隐式零参构造）
func (ts *Targets) Construct() Target { return ts.construct }

// Member 返回成员级目标；name 为 ConstructorMember 时返回构造槽位
func (ts *Targets) Member(name string) (Target, bool) {
	if name == ConstructorMember || name == "" {
		return ts.construct, true
	}
	t, ok := ts.members[name]
	return t, ok
}

// Params 返回成员的参数目标（按下标排序）
func (ts *Targets) Params(name string) []Target {
	if name == "" {
		name = ConstructorMember
	}
	return ts.params[name]
}

// Members 按声明顺序返回字段与方法名（不含构造槽位）
func (ts *Targets) Members() []string {
	out := make([]string, len(ts.order))
	copy(out, ts.order)
	return out
}

// All 返回全部目标，包括参数级目标
func (ts *Targets) All() []Target {
	all := []Target{ts.construct}
	all = append(all, ts.params[ConstructorMember]...)
	for _, name := range ts.order {
		all = append(all, ts.members[name])
		all = append(all, ts.params[name]...)
	}
	return all
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// enumerateTargets 枚举定义上的全部可注入成员
func enumerateTargets(def *Definition) (*Targets, error) {
	owner := def.Type
	if owner == nil || owner.Kind() != reflect.Struct {
		return nil, &ConfigurationError{Component: def.Name, Err: fmt.Errorf("%w: %v is not a struct type", ErrInvalidClass, owner)}
	}

	ts := &Targets{
		owner:   owner,
		members: make(map[string]Target),
		params:  make(map[string][]Target),
	}

	// 构造槽位：显式构造函数 > 委托工厂 > 隐式零参构造
	switch {
	case def.Constructor != nil:
		fnType := reflect.TypeOf(def.Constructor)
		if fnType.Kind() != reflect.Func {
			return nil, configError(def.Name, ConstructorMember, "%w: constructor must be a function, got %v", ErrInvalidClass, fnType)
		}
		if err := checkResults(fnType); err != nil {
			return nil, &ConfigurationError{Component: def.Name, Member: ConstructorMember, Err: err}
		}
		ts.construct = NewConstructorTarget(owner, fnType)
		ts.constructFn = fnType
	case def.Factory != nil:
		f := def.Factory
		if f.Type == nil {
			return nil, configError(def.Name, ConstructorMember, "%w: factory %s has no type", ErrInvalidClass, f.Component)
		}
		m, ok := f.Type.MethodByName(f.Method)
		if !ok {
			return nil, configError(def.Name, ConstructorMember, "%w: %v has no method %s", ErrUnknownMember, f.Type, f.Method)
		}
		fnType := methodSignature(m.Type)
		if err := checkResults(fnType); err != nil {
			return nil, &ConfigurationError{Component: def.Name, Member: f.Method, Err: err}
		}
		ts.construct = NewMethodTarget(f.Type, f.Method, fnType)
		ts.constructFn = fnType
	default:
		ts.construct = NewConstructorTarget(owner, nil)
	}
	if ts.constructFn != nil {
		ts.params[ConstructorMember] = paramTargets(ts.construct, ts.constructFn)
	}

	// 字段：只考虑导出的非嵌入字段
	for i := 0; i < owner.NumField(); i++ {
		f := owner.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		ts.members[f.Name] = NewFieldTarget(owner, f.Name, f.Type)
		ts.order = append(ts.order, f.Name)
	}

	// 方法：*T 上导出的、至少一个参数、无返回或仅返回 error 的方法
	ptr := reflect.PointerTo(owner)
	for i := 0; i < ptr.NumMethod(); i++ {
		m := ptr.Method(i)
		fnType := methodSignature(m.Type)
		if fnType.NumIn() == 0 || !setterResults(fnType) {
			continue
		}
		t := NewMethodTarget(owner, m.Name, fnType)
		ts.members[m.Name] = t
		ts.params[m.Name] = paramTargets(t, fnType)
		ts.order = append(ts.order, m.Name)
	}

	return ts, nil
}

func paramTargets(exec Target, fnType reflect.Type) []Target {
	params := make([]Target, fnType.NumIn())
	for i := range params {
		params[i] = exec.Param(i, fnType.In(i))
	}
	return params
}

// methodSignature 去掉方法签名中的接收者
func methodSignature(m reflect.Type) reflect.Type {
	in := make([]reflect.Type, 0, m.NumIn()-1)
	for i := 1; i < m.NumIn(); i++ {
		in = append(in, m.In(i))
	}
	out := make([]reflect.Type, 0, m.NumOut())
	for i := 0; i < m.NumOut(); i++ {
		out = append(out, m.Out(i))
	}
	return reflect.FuncOf(in, out, m.IsVariadic())
}

// checkResults 校验构造/工厂函数返回 (T) 或 (T, error)
func checkResults(fnType reflect.Type) error {
	switch fnType.NumOut() {
	case 1:
		return nil
	case 2:
		if fnType.Out(1) == errorType {
			return nil
		}
	}
	return fmt.Errorf("%w: %v must return (T) or (T, error)", ErrInvalidClass, fnType)
}

func setterResults(fnType reflect.Type) bool {
	switch fnType.NumOut() {
	case 0:
		return true
	case 1:
		return fnType.Out(0) == errorType
	}
	return false
}
