package di

import (
	"fmt"
	"strconv"
	"strings"
)

// TagName 是字段注入声明使用的 struct tag
const TagName = "di"

type modeKind int

const (
	modeRef modeKind = iota
	modeInfo
	modeType
	modeValue
	modeStatic
	modeCustom
)

// Mode 是一种注入方式，多个 Mode 组成 OR 链
type Mode struct {
	kind   modeKind
	arg    string
	custom func(component string, t Target) Strategy
}

// Ref 按组件名注入
func Ref(name string) Mode { return Mode{kind: modeRef, arg: name} }

// Info 从组件上下文信息表注入
func Info(key string) Mode { return Mode{kind: modeInfo, arg: key} }

// ByType 按声明类型在容器内查找唯一匹配
func ByType() Mode { return Mode{kind: modeType} }

// Value 注入由字面量转换得到的值
func Value(literal string) Mode { return Mode{kind: modeValue, arg: literal} }

// Static 显式声明零参构造/工厂路径
func Static() Mode { return Mode{kind: modeStatic} }

// Custom 使用自定义策略
func Custom(fn func(component string, t Target) Strategy) Mode {
	return Mode{kind: modeCustom, custom: fn}
}

func (m Mode) String() string {
	switch m.kind {
	case modeRef:
		return "ref=" + m.arg
	case modeInfo:
		return "info=" + m.arg
	case modeType:
		return "type"
	case modeValue:
		return "value=" + m.arg
	case modeStatic:
		return "static"
	default:
		return "custom"
	}
}

// Binding 是对一个目标的注入声明
type Binding struct {
	// Member 成员名；ConstructorMember 或空串表示构造槽位
	Member string
	// Param 参数下标，-1 表示整个成员
	Param int
	// Modes OR 链，按顺序尝试
	Modes []Mode
	// Optional 可选目标在解析失败时被忽略
	Optional bool
	// Source 声明来源，用于错误信息
	Source string
}

// Bind 为成员整体声明注入
func Bind(member string, modes ...Mode) Binding {
	return Binding{Member: member, Param: -1, Modes: modes, Source: "binding"}
}

// BindConstructor 为构造槽位整体声明注入
func BindConstructor(modes ...Mode) Binding {
	return Bind(ConstructorMember, modes...)
}

// BindParam 为成员的第 index 个参数声明注入
func BindParam(member string, index int, modes ...Mode) Binding {
	return Binding{Member: member, Param: index, Modes: modes, Source: "binding"}
}

// BindField 是 Bind 的别名，便于阅读
func BindField(field string, modes ...Mode) Binding {
	return Bind(field, modes...)
}

// BindMethod 为单参 setter 整体声明注入
func BindMethod(method string, modes ...Mode) Binding {
	return Bind(method, modes...)
}

// AsOptional 返回可选版本的声明
func (b Binding) AsOptional() Binding {
	b.Optional = true
	return b
}

func (b Binding) member() string {
	if b.Member == "" {
		return ConstructorMember
	}
	return b.Member
}

// ParseTag 解析字段 tag。
//
// 语法："链[,optional]"，链以 | 分隔，元素为 ref=名称、info=键、type、value=字面量，
// 裸名称等价于 ref=名称，空链等价于 type。"?" 或 "optional" 单独出现表示可选的按类型注入。
func ParseTag(tag string) (modes []Mode, optional bool, err error) {
	parts := strings.Split(tag, ",")
	// 尾部的 optional 标记
	for len(parts) > 1 {
		last := strings.TrimSpace(parts[len(parts)-1])
		if last != "optional" && last != "?" {
			break
		}
		optional = true
		parts = parts[:len(parts)-1]
	}
	chain := strings.TrimSpace(strings.Join(parts, ","))

	// 处理 "di:?" 或 "di:optional" 的情况
	if chain == "?" || chain == "optional" {
		return []Mode{ByType()}, true, nil
	}
	if chain == "" {
		return []Mode{ByType()}, optional, nil
	}

	for _, elem := range strings.Split(chain, "|") {
		elem = strings.TrimSpace(elem)
		key, arg, hasArg := strings.Cut(elem, "=")
		switch {
		case !hasArg && (elem == "type" || elem == ""):
			modes = append(modes, ByType())
		case !hasArg && elem == "static":
			modes = append(modes, Static())
		case !hasArg:
			modes = append(modes, Ref(elem))
		case key == "ref" && arg != "":
			modes = append(modes, Ref(arg))
		case key == "info" && arg != "":
			modes = append(modes, Info(arg))
		case key == "value":
			modes = append(modes, Value(arg))
		default:
			return nil, false, fmt.Errorf("invalid injection element %q in tag %q", elem, tag)
		}
	}
	return modes, optional, nil
}

// ParseMember 解析成员描述："Name"、"SetDB#1"、"#0"（构造参数）或 "new"
func ParseMember(s string) (member string, param int, err error) {
	name, idx, ok := strings.Cut(s, "#")
	if name == "" {
		name = ConstructorMember
	}
	if !ok {
		return name, -1, nil
	}
	param, err = strconv.Atoi(idx)
	if err != nil || param < 0 {
		return "", 0, fmt.Errorf("invalid parameter index in %q", s)
	}
	return name, param, nil
}

// strategy 把注入方式绑定到具体目标上
func (m Mode) strategy(def *Definition, t Target, dir Directory, coercer Coercer, optional bool) Strategy {
	switch m.kind {
	case modeRef:
		return NewReferenceStrategy(def.Name, t, m.arg, optional)
	case modeInfo:
		return NewInfoStrategy(def.Name, t, m.arg, def.Properties, coercer, optional)
	case modeType:
		return NewTypeStrategy(def.Name, t, dir, optional)
	case modeValue:
		return NewValueStrategy(def.Name, t, m.arg, coercer, optional)
	case modeStatic:
		return NewStaticStrategy(def.Name, t)
	default:
		if m.custom == nil {
			return nil
		}
		return m.custom(def.Name, t)
	}
}
