package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gocrud/container/component"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
	"github.com/gocrud/container/pool"
)

// Settings 是组件的部署参数
type Settings struct {
	// Pool 实例池配置
	Pool pool.Options
	// Stateful 为每个引用维护私有实例
	Stateful bool
	// IdleTimeout 有状态引用的空闲超时，0 表示不回收
	IdleTimeout time.Duration
	// ReapInterval 回收检查间隔，默认与 IdleTimeout 相同
	ReapInterval time.Duration
}

// Deployment 是一个已部署的组件
type Deployment struct {
	Definition *di.Definition
	Settings   Settings
	Manager    component.Manager

	handle      *component.Handle
	initialised atomic.Bool
}

// Kind 返回组件种类
func (d *Deployment) Kind() string {
	if d.Settings.Stateful {
		return KindStateful
	}
	return KindStateless
}

// Initialised 报告实例池是否已注册构造回调
func (d *Deployment) Initialised() bool {
	return d.initialised.Load()
}

// Deploy 部署组件。结构性的注入配置错误在此时暴露。
// 运行时已启动时组件立即初始化。
func (rt *Runtime) Deploy(def *di.Definition, settings Settings) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if err := rt.Registry.Prepare(def); err != nil {
		return err
	}

	opts := settings.Pool
	if opts.Logger == nil {
		opts.Logger = rt.logger
	}
	d := &Deployment{Definition: def, Settings: settings}
	if settings.Stateful {
		d.Manager = component.NewStateful(def.Name, opts)
	} else {
		d.Manager = component.NewStateless(def.Name, opts)
		d.handle = component.NewHandle(d.Manager, component.Reference{Component: def.Name})
	}

	rt.mu.Lock()
	if rt.taken(def.Name) {
		// 同一个定义重复部署时缓存仍属于已部署的组件，不能清理
		live, ok := rt.deployments[def.Name]
		rt.mu.Unlock()
		if !ok || live.Definition != def {
			rt.Registry.Close(def)
		}
		return fmt.Errorf("deploy %s: %w", def.Name, ErrDuplicateComponent)
	}
	rt.deployments[def.Name] = d
	started := rt.started
	rt.mu.Unlock()

	rt.logger.Info("Component deployed",
		logging.F("component", def.Name),
		logging.F("kind", d.Kind()),
		logging.F("type", def.Type.String()))

	if started {
		if err := rt.initialise(context.Background(), d); err != nil {
			return err
		}
		rt.mu.Lock()
		rt.order = append(rt.order, def.Name)
		rt.mu.Unlock()
	}
	return nil
}

// Undeploy 卸载组件：停止回收、销毁实例并清除注入缓存
func (rt *Runtime) Undeploy(name string) error {
	rt.mu.Lock()
	d, ok := rt.deployments[name]
	if !ok {
		rt.mu.Unlock()
		return fmt.Errorf("undeploy %s: %w", name, ErrUnknownComponent)
	}
	delete(rt.deployments, name)
	for i, n := range rt.order {
		if n == name {
			rt.order = append(rt.order[:i:i], rt.order[i+1:]...)
			break
		}
	}
	rt.mu.Unlock()

	rt.Reaper.Unwatch(name)
	err := d.Manager.Destroy()
	rt.Registry.Close(d.Definition)

	if err != nil {
		rt.logger.Error("Component undeployed with teardown errors", logging.F("component", name), logging.Err(err))
		return fmt.Errorf("undeploy %s: %w", name, err)
	}
	rt.logger.Info("Component undeployed", logging.F("component", name))
	return nil
}

// initialise 注册构造回调；非惰性池在此时预先创建实例
func (rt *Runtime) initialise(ctx context.Context, d *Deployment) error {
	if d.initialised.Load() {
		return nil
	}
	factory := component.NewInstanceFactory(rt.Registry, d.Definition, rt)
	if err := d.Manager.Init(ctx, factory); err != nil {
		return fmt.Errorf("initialise %s: %w", d.Definition.Name, err)
	}
	d.initialised.Store(true)

	if e, ok := d.Manager.(component.Expirer); ok && d.Settings.IdleTimeout > 0 {
		interval := d.Settings.ReapInterval
		if interval <= 0 {
			interval = d.Settings.IdleTimeout
		}
		if err := rt.Reaper.Watch(e, interval, d.Settings.IdleTimeout); err != nil {
			return err
		}
	}
	rt.logger.Debug("Component initialised", logging.F("component", d.Definition.Name))
	return nil
}
