package di

import (
	"fmt"
	"reflect"
	"sort"
)

// claim 是对单个目标的一条注入声明
type claim struct {
	target   Target
	modes    []Mode
	optional bool
	source   string
}

// slotPlan 是一个可执行成员或字段的装配方案：整体策略或逐参数策略二选一
type slotPlan struct {
	target Target
	whole  Strategy
	params []Strategy
}

func (p *slotPlan) strategies() []Strategy {
	if p.whole != nil {
		return []Strategy{p.whole}
	}
	return p.params
}

// plan 是一个定义的全部装配方案
type plan struct {
	targets   *Targets
	construct *slotPlan // 构造函数可选且未装配时为 nil
	setters   []*slotPlan
}

type planKey struct {
	def     *Definition
	factory string
}

type planEntry struct {
	plan *plan
	err  error
}

func keyOf(def *Definition) planKey {
	k := planKey{def: def}
	if def.Factory != nil {
		k.factory = def.Factory.Component + "." + def.Factory.Method
	}
	return k
}

// plan 返回缓存的装配方案，首次调用时构建。并发的首次构建只保留一个结果。
func (r *Registry) plan(def *Definition) (*plan, error) {
	key := keyOf(def)
	if v, ok := r.plans.Load(key); ok {
		e := v.(*planEntry)
		return e.plan, e.err
	}
	p, err := r.buildPlan(def)
	v, _ := r.plans.LoadOrStore(key, &planEntry{plan: p, err: err})
	e := v.(*planEntry)
	return e.plan, e.err
}

func (r *Registry) buildPlan(def *Definition) (*plan, error) {
	ts, err := r.Targets(def)
	if err != nil {
		return nil, err
	}
	claims, err := collectClaims(def, ts)
	if err != nil {
		return nil, err
	}

	p := &plan{targets: ts}
	if p.construct, err = r.constructPlan(def, ts, claims); err != nil {
		return nil, err
	}
	for _, name := range ts.order {
		sp, err := r.memberPlan(def, ts, name, claims)
		if err != nil {
			return nil, err
		}
		if sp != nil {
			p.setters = append(p.setters, sp)
		}
	}
	return p, nil
}

// collectClaims 合并字段 tag 与代码声明，同一目标只允许声明一次
func collectClaims(def *Definition, ts *Targets) (map[Target]*claim, error) {
	claims := make(map[Target]*claim)
	add := func(c *claim) error {
		if prev, ok := claims[c.target]; ok {
			return configError(def.Name, c.target.MemberString(), "%w: declared by %s and %s", ErrDuplicateClaim, prev.source, c.source)
		}
		claims[c.target] = c
		return nil
	}

	for i := 0; i < def.Type.NumField(); i++ {
		field := def.Type.Field(i)
		tagValue, hasTag := field.Tag.Lookup(TagName)
		if !hasTag || tagValue == "-" {
			continue
		}
		t, ok := ts.members[field.Name]
		if !ok || t.Kind() != KindField {
			return nil, configError(def.Name, field.Name, "%w: field is not injectable", ErrUnknownMember)
		}
		modes, optional, err := ParseTag(tagValue)
		if err != nil {
			return nil, &ConfigurationError{Component: def.Name, Member: field.Name, Err: err}
		}
		if err := add(&claim{target: t, modes: modes, optional: optional, source: "tag"}); err != nil {
			return nil, err
		}
	}

	for _, b := range def.Bindings {
		t, err := resolveBindingTarget(def, ts, b)
		if err != nil {
			return nil, err
		}
		if len(b.Modes) == 0 {
			return nil, configError(def.Name, t.MemberString(), "empty injection chain")
		}
		source := b.Source
		if source == "" {
			source = "binding"
		}
		if err := add(&claim{target: t, modes: b.Modes, optional: b.Optional, source: source}); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

func resolveBindingTarget(def *Definition, ts *Targets, b Binding) (Target, error) {
	name := b.member()
	member, ok := ts.Member(name)
	if !ok {
		return Target{}, configError(def.Name, name, "%w", ErrUnknownMember)
	}
	if b.Param < 0 {
		return member, nil
	}
	params := ts.Params(name)
	if b.Param >= len(params) {
		return Target{}, configError(def.Name, name, "%w: parameter %d of %d", ErrArity, b.Param, len(params))
	}
	return params[b.Param], nil
}

// constructPlan 组装构造槽位
func (r *Registry) constructPlan(def *Definition, ts *Targets, claims map[Target]*claim) (*slotPlan, error) {
	t := ts.Construct()
	sp, err := r.slot(def, t, ts.Params(ConstructorMember), claims)
	if err != nil {
		return nil, err
	}
	if sp != nil {
		return sp, nil
	}

	// 未声明：零参走 static 路径，多参按类型装配或在可选时放弃
	switch {
	case t.Arity() == 0:
		return &slotPlan{target: t, whole: Compose(def.Name, r.directory, NewStaticStrategy(def.Name, t))}, nil
	case def.ConstructorOptional:
		return nil, nil
	}
	sp = &slotPlan{target: t}
	for _, pt := range ts.Params(ConstructorMember) {
		sp.params = append(sp.params, Compose(def.Name, r.directory, NewTypeStrategy(def.Name, pt, r.directory, false)))
	}
	return sp, nil
}

// memberPlan 组装字段或 setter；未声明的成员返回 nil
func (r *Registry) memberPlan(def *Definition, ts *Targets, name string, claims map[Target]*claim) (*slotPlan, error) {
	t := ts.members[name]
	return r.slot(def, t, ts.params[name], claims)
}

// slot 检查一个成员的声明：整体与逐参数互斥，逐参数必须覆盖全部参数
func (r *Registry) slot(def *Definition, t Target, params []Target, claims map[Target]*claim) (*slotPlan, error) {
	whole, hasWhole := claims[t]
	var byParam []*claim
	for _, pt := range params {
		if c, ok := claims[pt]; ok {
			byParam = append(byParam, c)
		}
	}

	switch {
	case hasWhole && len(byParam) > 0:
		return nil, configError(def.Name, t.MemberString(), "%w", ErrMixedClaims)
	case hasWhole:
		if t.Kind() != KindField && t.Arity() > 1 && !hasStatic(whole.modes) {
			return nil, configError(def.Name, t.MemberString(), "%w: whole-member injection needs at most one parameter, %s takes %d", ErrArity, t.MemberString(), t.Arity())
		}
		s, err := r.compose(def, whole)
		if err != nil {
			return nil, err
		}
		return &slotPlan{target: t, whole: s}, nil
	case len(byParam) > 0:
		if len(byParam) != t.Arity() {
			missing := make([]string, 0, t.Arity()-len(byParam))
			for _, pt := range params {
				if _, ok := claims[pt]; !ok {
					missing = append(missing, pt.MemberString())
				}
			}
			sort.Strings(missing)
			return nil, configError(def.Name, t.MemberString(), "%w: missing %v", ErrPartialParams, missing)
		}
		sp := &slotPlan{target: t}
		for _, c := range byParam {
			s, err := r.compose(def, c)
			if err != nil {
				return nil, err
			}
			sp.params = append(sp.params, s)
		}
		return sp, nil
	}
	return nil, nil
}

// compose 把声明的注入方式组装成完整的策略链
func (r *Registry) compose(def *Definition, c *claim) (Strategy, error) {
	chain := make([]Strategy, 0, len(c.modes))
	for _, m := range c.modes {
		if s := m.strategy(def, c.target, r.directory, r.coercer, c.optional); s != nil {
			chain = append(chain, s)
		}
	}
	if len(chain) == 0 {
		return nil, configError(def.Name, c.target.MemberString(), "%w: %v", ErrNoStrategy, c.modes)
	}
	return Compose(def.Name, r.directory, chain...), nil
}

func hasStatic(modes []Mode) bool {
	for _, m := range modes {
		if m.kind == modeStatic {
			return true
		}
	}
	return false
}

// resolveSlot 解析一个成员的实参。
// 返回 ok=false 表示可选目标未解析，调用方应放弃该注入。
func resolveSlot(component string, sp *slotPlan, ctx ComponentContext) (args []*Injectant, ok bool, err error) {
	for _, s := range sp.strategies() {
		inj, err := s.Injectant(ctx)
		if err != nil {
			return nil, false, err
		}
		if inj == nil {
			if s.Optional() {
				return nil, false, nil
			}
			return nil, false, wiringError(component, s.Target(), ErrUnresolved)
		}
		args = append(args, inj)
	}
	return args, true, nil
}

func describeArgs(args []*Injectant) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch {
		case a.Static:
			parts[i] = "static"
		case a.Value == nil:
			parts[i] = "nil"
		default:
			parts[i] = reflect.TypeOf(a.Value).String()
		}
	}
	return fmt.Sprint(parts)
}
