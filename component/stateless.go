package component

import (
	"context"
	"fmt"

	"github.com/gocrud/container/logging"
	"github.com/gocrud/container/pool"
)

// Stateless 是进程级共享一个实例池的组件
type Stateless struct {
	name   string
	pool   *pool.Pool
	logger logging.Logger
}

// NewStateless 创建无状态组件管理器
func NewStateless(name string, opts pool.Options) *Stateless {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stateless{
		name:   name,
		pool:   pool.New(name, opts),
		logger: logger.WithFields(logging.F("component", name)),
	}
}

func (m *Stateless) Name() string   { return m.name }
func (m *Stateless) Stateful() bool { return false }

func (m *Stateless) Init(ctx context.Context, factory pool.Factory) error {
	ref := Reference{Component: m.name}
	return reclaim(m.logger, m.pool.Init(WithReference(ctx, ref), factory))
}

// Create 返回共享引用，无状态组件不为引用分配独立资源
func (m *Stateless) Create(context.Context) (Reference, error) {
	return Reference{Component: m.name}, nil
}

func (m *Stateless) GetComponentObject(ctx context.Context, ref Reference) (any, error) {
	if err := m.check(ref); err != nil {
		return nil, err
	}
	obj, err := m.pool.Get(WithReference(ctx, ref))
	return obj, reclaim(m.logger, err)
}

func (m *Stateless) FreeComponentObject(ref Reference, obj any) error {
	if err := m.check(ref); err != nil {
		return err
	}
	destroy, err := m.pool.Free(obj)
	if err != nil {
		return err
	}
	if destroy {
		return m.teardown(obj)
	}
	return nil
}

func (m *Stateless) DiscardComponentObject(ref Reference, obj any) error {
	if err := m.check(ref); err != nil {
		return err
	}
	if err := m.pool.Discard(obj); err != nil {
		return err
	}
	return m.teardown(obj)
}

// Remove 对无状态组件没有效果
func (m *Stateless) Remove(ref Reference) error {
	return m.check(ref)
}

func (m *Stateless) Destroy() error {
	return teardownAll(m.logger, m.pool.Destroy())
}

func (m *Stateless) Stats() map[string]pool.Stats {
	return map[string]pool.Stats{"": m.pool.Stats()}
}

func (m *Stateless) check(ref Reference) error {
	if ref.Component != m.name || ref.Key != "" {
		return fmt.Errorf("%w: %s is not %s", ErrUnknownReference, ref, m.name)
	}
	return nil
}

func (m *Stateless) teardown(obj any) error {
	if err := Teardown(obj); err != nil {
		m.logger.Error("instance teardown failed", logging.Err(err))
		return err
	}
	return nil
}

// reclaim 销毁随错误返回、未被池接纳的实例
func reclaim(logger logging.Logger, err error) error {
	if orphans := pool.Orphans(err); len(orphans) > 0 {
		teardownAll(logger, orphans)
	}
	return err
}

// teardownAll 逐个销毁实例，失败时继续并返回最后一个错误
func teardownAll(logger logging.Logger, instances []any) error {
	var last error
	for _, obj := range instances {
		if err := Teardown(obj); err != nil {
			logger.Error("instance teardown failed", logging.Err(err))
			last = err
		}
	}
	return last
}
