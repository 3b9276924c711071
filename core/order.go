package core

import (
	"fmt"
	"sort"

	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
)

// startOrder 按直接依赖做深度优先排序，依赖先于使用方初始化。
// 环只记录警告并在回边处断开。
func (rt *Runtime) startOrder() ([]string, error) {
	rt.mu.RLock()
	defs := make(map[string]*di.Definition, len(rt.deployments))
	names := make([]string, 0, len(rt.deployments))
	for name, d := range rt.deployments {
		defs[name] = d.Definition
		names = append(names, name)
	}
	values := make(map[string]bool, len(rt.values))
	for name := range rt.values {
		values[name] = true
	}
	rt.mu.RUnlock()
	sort.Strings(names)

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(names))
	order := make([]string, 0, len(names))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			rt.logger.Warn("dependency cycle detected",
				logging.F("cycle", fmt.Sprint(append(path, name))))
			return nil
		}
		state[name] = visiting

		deps, err := rt.Registry.Dependencies(defs[name])
		if err != nil {
			return err
		}
		for _, dep := range deps {
			switch {
			case values[dep]:
			case defs[dep] != nil:
				if err := visit(dep, append(path, name)); err != nil {
					return err
				}
			default:
				return &di.ConfigurationError{Component: name, Err: fmt.Errorf("%w: depends on unknown component %q", di.ErrUnresolved, dep)}
			}
		}

		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}
