package di

import (
	"sort"
)

type depsEntry struct {
	names []string
	err   error
}

// Dependencies 计算定义直接依赖的组件名集合：委托工厂组件、未被忽略的显式依赖，
// 以及构造与 setter 策略的依赖。结果排序去重，并按定义缓存。
func (r *Registry) Dependencies(def *Definition) ([]string, error) {
	if v, ok := r.deps.Load(def); ok {
		e := v.(*depsEntry)
		return e.names, e.err
	}
	names, err := r.inspect(def)
	v, _ := r.deps.LoadOrStore(def, &depsEntry{names: names, err: err})
	e := v.(*depsEntry)
	return e.names, e.err
}

func (r *Registry) inspect(def *Definition) ([]string, error) {
	p, err := r.plan(def)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	if def.Factory != nil {
		set[def.Factory.Component] = struct{}{}
	}

	ignored := make(map[string]struct{}, len(def.IgnoreDependsOn))
	for _, name := range def.IgnoreDependsOn {
		ignored[name] = struct{}{}
	}
	for _, name := range def.DependsOn {
		if _, skip := ignored[name]; !skip {
			set[name] = struct{}{}
		}
	}

	slots := p.setters
	if p.construct != nil {
		slots = append([]*slotPlan{p.construct}, slots...)
	}
	for _, sp := range slots {
		for _, s := range sp.strategies() {
			deps, err := s.Dependencies()
			if err != nil {
				return nil, err
			}
			for _, name := range deps {
				set[name] = struct{}{}
			}
		}
	}

	delete(set, def.Name)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
