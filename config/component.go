package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocrud/container/core"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/pool"
)

// ComponentsSection 是组件配置所在的节
const ComponentsSection = "components"

// Duration 接受 "30s" 形式的字符串或以秒计的数字
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(x * float64(time.Second)))
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// PoolSettings 实例池配置
type PoolSettings struct {
	MinSize   int  `json:"minSize"`
	MaxSize   int  `json:"maxSize"`
	Reentrant bool `json:"reentrant"`
	Lazy      bool `json:"lazy"`
}

// ComponentSettings 是 components:<name> 节的内容
//
//	components:
//	  cart:
//	    stateful: true
//	    idleTimeout: 30m
//	    pool: {maxSize: 4, reentrant: true}
//	    properties: {currency: EUR}
//	    inject:
//	      Store: ref=store|type
//	      SetLimits#1: value=100
//	    dependsOn: [audit]
type ComponentSettings struct {
	Pool         PoolSettings      `json:"pool"`
	Stateful     bool              `json:"stateful"`
	IdleTimeout  Duration          `json:"idleTimeout"`
	ReapInterval Duration          `json:"reapInterval"`
	Properties   map[string]any    `json:"properties"`
	Inject       map[string]string `json:"inject"`
	DependsOn    []string          `json:"dependsOn"`
}

// ComponentSettingsFor 读取组件配置，节不存在时返回零值
func ComponentSettingsFor(cfg Configuration, name string) (ComponentSettings, error) {
	key := ComponentsSection + ":" + name
	if !cfg.Exists(key) {
		return ComponentSettings{}, nil
	}
	s, err := Load[ComponentSettings](cfg, key)
	if err != nil {
		return ComponentSettings{}, fmt.Errorf("config: component %s: %w", name, err)
	}
	return s, nil
}

// Settings 转换为部署参数
func (s ComponentSettings) Settings() core.Settings {
	return core.Settings{
		Pool: pool.Options{
			MinSize:   s.Pool.MinSize,
			MaxSize:   s.Pool.MaxSize,
			Reentrant: s.Pool.Reentrant,
			Lazy:      s.Pool.Lazy,
		},
		Stateful:     s.Stateful,
		IdleTimeout:  time.Duration(s.IdleTimeout),
		ReapInterval: time.Duration(s.ReapInterval),
	}
}

// Bindings 把 inject 表解析为注入声明，按成员名排序。
// 键是成员描述（"Store"、"SetLimits#1"、"#0"、"new"），值使用 di 标签语法。
func (s ComponentSettings) Bindings() ([]di.Binding, error) {
	members := make([]string, 0, len(s.Inject))
	for m := range s.Inject {
		members = append(members, m)
	}
	sort.Strings(members)

	bindings := make([]di.Binding, 0, len(members))
	for _, m := range members {
		member, param, err := di.ParseMember(strings.TrimSpace(m))
		if err != nil {
			return nil, err
		}
		modes, optional, err := di.ParseTag(s.Inject[m])
		if err != nil {
			return nil, fmt.Errorf("inject %s: %w", m, err)
		}
		bindings = append(bindings, di.Binding{
			Member:   member,
			Param:    param,
			Modes:    modes,
			Optional: optional,
			Source:   "config",
		})
	}
	return bindings, nil
}

// Apply 把配置合并进组件定义：属性覆盖同名键，inject 替换代码中对同一目标的声明，
// 与字段标签冲突的声明在部署时报告为重复声明。
func (s ComponentSettings) Apply(def *di.Definition) error {
	bindings, err := s.Bindings()
	if err != nil {
		return &di.ConfigurationError{Component: def.Name, Err: err}
	}

	kept := def.Bindings[:0:0]
	for _, b := range def.Bindings {
		if !overridden(b, bindings) {
			kept = append(kept, b)
		}
	}
	def.Bindings = append(kept, bindings...)

	if len(s.Properties) > 0 {
		di.WithProperties(s.Properties)(def)
	}
	if len(s.DependsOn) > 0 {
		di.DependsOn(s.DependsOn...)(def)
	}
	return nil
}

func overridden(b di.Binding, by []di.Binding) bool {
	for _, o := range by {
		if memberName(o.Member) == memberName(b.Member) && o.Param == b.Param {
			return true
		}
	}
	return false
}

func memberName(m string) string {
	if m == "" {
		return di.ConstructorMember
	}
	return m
}
