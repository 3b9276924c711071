package core

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/gocrud/container/component"
)

var handleType = reflect.TypeOf((*component.Handle)(nil))

// Exists 实现 di.Directory
func (rt *Runtime) Exists(name string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.taken(name)
}

// NamesOf 实现 di.Directory。
// 普通值按其动态类型匹配；托管组件以 *component.Handle 的形式注入。
func (rt *Runtime) NamesOf(t reflect.Type) []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	var names []string
	for name, v := range rt.values {
		if reflect.TypeOf(v).AssignableTo(t) {
			names = append(names, name)
		}
	}
	if handleType.AssignableTo(t) {
		for name := range rt.deployments {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Lookup 实现 component.Lookup。
// 无状态组件返回共享句柄，有状态组件每次查找都创建一个新引用。
func (rt *Runtime) Lookup(ctx context.Context, name string) (any, error) {
	rt.mu.RLock()
	v, isValue := rt.values[name]
	d, isComponent := rt.deployments[name]
	rt.mu.RUnlock()

	switch {
	case isValue:
		return v, nil
	case !isComponent:
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	case d.handle != nil:
		return d.handle, nil
	}
	ref, err := d.Manager.Create(ctx)
	if err != nil {
		return nil, err
	}
	return component.NewHandle(d.Manager, ref), nil
}

// Handle 返回组件的访问句柄
func (rt *Runtime) Handle(ctx context.Context, name string) (*component.Handle, error) {
	v, err := rt.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	h, ok := v.(*component.Handle)
	if !ok {
		return nil, fmt.Errorf("%s is a plain value of type %T, not a managed component", name, v)
	}
	return h, nil
}

// Value 返回以 Provide 注册的值
func (rt *Runtime) Value(name string) (any, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	v, ok := rt.values[name]
	return v, ok
}
