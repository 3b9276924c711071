package component

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gocrud/container/di"
	"github.com/gocrud/container/pool"
)

// callContext 在单次构造中向注入策略提供当前引用与组件查找
type callContext struct {
	ctx       context.Context
	component string
	lookup    Lookup
}

func (c *callContext) Component() string { return c.component }

func (c *callContext) Reference() any {
	if ref, ok := ReferenceFrom(c.ctx); ok {
		return ref
	}
	return nil
}

func (c *callContext) Lookup(name string) (any, error) {
	if c.lookup == nil {
		return nil, fmt.Errorf("no lookup for %q", name)
	}
	return c.lookup.Lookup(c.ctx, name)
}

// NewInstanceFactory 返回组件的构造回调：构造注入、setter 注入，然后调用 PostConstruct
func NewInstanceFactory(reg *di.Registry, def *di.Definition, lookup Lookup) pool.Factory {
	return func(ctx context.Context) (any, error) {
		cc := &callContext{ctx: ctx, component: def.Name, lookup: lookup}

		ci, err := reg.ConstructorInjection(def, cc)
		if err != nil {
			return nil, err
		}

		var obj any
		if ci == nil {
			obj = reflect.New(def.Type).Interface()
		} else if obj, err = ci.Invoke(); err != nil {
			return nil, err
		}

		setters, err := reg.SetterInjections(def, cc)
		if err != nil {
			return nil, err
		}
		for _, si := range setters {
			if err := si.Apply(obj); err != nil {
				return nil, err
			}
		}

		if pc, ok := obj.(PostConstructor); ok {
			if err := pc.PostConstruct(); err != nil {
				return nil, fmt.Errorf("post-construct %s: %w", def.Name, err)
			}
		}
		return obj, nil
	}
}
