package core

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/gocrud/container/component"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
	"github.com/gocrud/container/pool"
)

// Runtime 是容器的状态中心：组件目录、注入注册表、生命周期与空闲回收
type Runtime struct {
	// Registry 注入方案与依赖集合的缓存
	Registry *di.Registry

	// Lifecycle 生命周期管理
	Lifecycle *LifecycleEvents

	// Reaper 回收有状态组件的空闲引用
	Reaper *component.Reaper

	// ErrorHandler 用于记录运行时产生的严重错误
	// 外部可以通过设置此字段来接管错误日志
	ErrorHandler func(err error)

	logger logging.Logger

	mu          sync.RWMutex
	values      map[string]any
	deployments map[string]*Deployment
	order       []string
	started     bool

	// shutdownCh 用于通知应用退出
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewRuntime 创建一个新的运行时实例
func NewRuntime() *Runtime {
	rt := &Runtime{
		Lifecycle:   NewLifecycle(),
		values:      make(map[string]any),
		deployments: make(map[string]*Deployment),
		shutdownCh:  make(chan struct{}),
	}
	rt.SetLogger(logging.NewLogger())
	return rt
}

// SetLogger 替换日志记录器。须在部署组件之前调用。
func (rt *Runtime) SetLogger(logger logging.Logger) {
	rt.logger = logger.WithCategory("Runtime")
	rt.Registry = di.NewRegistry(rt, di.WithLogger(logger.WithCategory("Injection")))
	rt.Reaper = component.NewReaper(logger.WithCategory("Reaper"))
	rt.Lifecycle.logger = rt.logger
	rt.ErrorHandler = func(err error) {
		rt.logger.Error("runtime error", logging.Err(err))
	}
}

// Logger 返回运行时日志记录器
func (rt *Runtime) Logger() logging.Logger {
	return rt.logger
}

// Apply 应用多个 Option
func (rt *Runtime) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown 请求应用退出
// 调用此方法会触发应用关闭流程
func (rt *Runtime) Shutdown() {
	rt.shutdownOnce.Do(func() {
		close(rt.shutdownCh)
	})
}

// Done 返回一个通道，当应用需要退出时该通道会关闭
func (rt *Runtime) Done() <-chan struct{} {
	return rt.shutdownCh
}

// Provide 以名称注册一个现成的值，可被其他组件按名称或类型注入
func (rt *Runtime) Provide(name string, value any) error {
	if name == "" || value == nil {
		return fmt.Errorf("provide: name and value are required")
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.taken(name) {
		return fmt.Errorf("provide %s: %w", name, ErrDuplicateComponent)
	}
	rt.values[name] = value
	rt.logger.Debug("value provided", logging.F("component", name), logging.F("type", reflect.TypeOf(value).String()))
	return nil
}

// Start 按依赖顺序初始化全部组件，然后执行启动钩子
func (rt *Runtime) Start(ctx context.Context) error {
	order, err := rt.startOrder()
	if err != nil {
		return err
	}

	for _, name := range order {
		d, ok := rt.deployment(name)
		if !ok {
			continue
		}
		if err := rt.initialise(ctx, d); err != nil {
			return err
		}
	}

	rt.mu.Lock()
	rt.order = order
	rt.started = true
	rt.mu.Unlock()

	rt.Reaper.Start()
	rt.logger.Info("Runtime started", logging.F("components", len(order)))
	return rt.Lifecycle.Start(ctx)
}

// Stop 倒序执行停止钩子并销毁全部组件，汇总所有错误
func (rt *Runtime) Stop(ctx context.Context) error {
	err := rt.Lifecycle.Stop(ctx)
	err = multierr.Append(err, rt.Reaper.Stop(ctx))

	rt.mu.Lock()
	order := rt.destroyOrder()
	rt.started = false
	rt.mu.Unlock()

	for _, name := range order {
		d, ok := rt.deployment(name)
		if !ok {
			continue
		}
		if derr := d.Manager.Destroy(); derr != nil {
			rt.logger.Error("component teardown failed", logging.F("component", name), logging.Err(derr))
			err = multierr.Append(err, fmt.Errorf("destroy %s: %w", name, derr))
		}
	}
	rt.logger.Info("Runtime stopped")
	return err
}

// Started 报告运行时是否已启动
func (rt *Runtime) Started() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.started
}

// Order 返回最近一次启动计算出的初始化顺序
func (rt *Runtime) Order() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]string, len(rt.order))
	copy(out, rt.order)
	return out
}

// ComponentInfo 描述一个已注册的组件
type ComponentInfo struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Type         string   `json:"type"`
	Dependencies []string `json:"dependencies,omitempty"`
	Initialised  bool     `json:"initialised"`
	Error        string   `json:"error,omitempty"`
}

const (
	KindValue     = "value"
	KindStateless = "stateless"
	KindStateful  = "stateful"
)

// Components 返回全部组件的描述，按名称排序
func (rt *Runtime) Components() []ComponentInfo {
	rt.mu.RLock()
	infos := make([]ComponentInfo, 0, len(rt.values)+len(rt.deployments))
	for name, v := range rt.values {
		infos = append(infos, ComponentInfo{Name: name, Kind: KindValue, Type: reflect.TypeOf(v).String(), Initialised: true})
	}
	deployments := make([]*Deployment, 0, len(rt.deployments))
	for _, d := range rt.deployments {
		deployments = append(deployments, d)
	}
	rt.mu.RUnlock()

	for _, d := range deployments {
		info := ComponentInfo{
			Name:        d.Definition.Name,
			Kind:        d.Kind(),
			Type:        reflect.PointerTo(d.Definition.Type).String(),
			Initialised: d.Initialised(),
		}
		if deps, err := rt.Registry.Dependencies(d.Definition); err != nil {
			info.Error = err.Error()
		} else {
			info.Dependencies = deps
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Dependencies 返回组件直接依赖的组件名
func (rt *Runtime) Dependencies(name string) ([]string, error) {
	rt.mu.RLock()
	_, isValue := rt.values[name]
	d, ok := rt.deployments[name]
	rt.mu.RUnlock()
	switch {
	case isValue:
		return []string{}, nil
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	return rt.Registry.Dependencies(d.Definition)
}

// PoolStats 返回组件各引用的池状态
func (rt *Runtime) PoolStats(name string) (map[string]pool.Stats, error) {
	d, ok := rt.deployment(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	return d.Manager.Stats(), nil
}

func (rt *Runtime) deployment(name string) (*Deployment, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	d, ok := rt.deployments[name]
	return d, ok
}

// taken 调用时须持有锁
func (rt *Runtime) taken(name string) bool {
	_, isValue := rt.values[name]
	_, isComponent := rt.deployments[name]
	return isValue || isComponent
}

// destroyOrder 返回销毁顺序：启动顺序的逆序，随后是未参与启动的组件。调用时须持有锁。
func (rt *Runtime) destroyOrder() []string {
	seen := make(map[string]bool, len(rt.order))
	out := make([]string, 0, len(rt.deployments))
	for i := len(rt.order) - 1; i >= 0; i-- {
		name := rt.order[i]
		if _, ok := rt.deployments[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	rest := make([]string, 0)
	for name := range rt.deployments {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
