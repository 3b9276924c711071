package component

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gocrud/container/logging"
	"github.com/gocrud/container/pool"
)

// Stateful 为每个引用维护私有实例的组件，引用以随机 UUID 标识
type Stateful struct {
	name   string
	pool   *pool.Stateful
	logger logging.Logger
}

// NewStateful 创建有状态组件管理器
func NewStateful(name string, opts pool.Options) *Stateful {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stateful{
		name:   name,
		pool:   pool.NewStateful(name, opts),
		logger: logger.WithFields(logging.F("component", name)),
	}
}

func (m *Stateful) Name() string   { return m.name }
func (m *Stateful) Stateful() bool { return true }

func (m *Stateful) Init(_ context.Context, factory pool.Factory) error {
	return m.pool.Init(factory)
}

func (m *Stateful) Create(ctx context.Context) (Reference, error) {
	ref := Reference{Component: m.name, Key: uuid.NewString()}
	if err := m.pool.Create(WithReference(ctx, ref), ref.Key); err != nil {
		return Reference{}, reclaim(m.logger, err)
	}
	m.logger.Debug("reference created", logging.F("ref", ref.Key))
	return ref, nil
}

func (m *Stateful) GetComponentObject(ctx context.Context, ref Reference) (any, error) {
	if err := m.check(ref); err != nil {
		return nil, err
	}
	obj, err := m.pool.Get(WithReference(ctx, ref), ref.Key)
	return obj, reclaim(m.logger, err)
}

func (m *Stateful) FreeComponentObject(ref Reference, obj any) error {
	if err := m.check(ref); err != nil {
		return err
	}
	destroy, err := m.pool.Free(ref.Key, obj)
	if err != nil {
		return err
	}
	if destroy {
		return Teardown(obj)
	}
	return nil
}

func (m *Stateful) DiscardComponentObject(ref Reference, obj any) error {
	if err := m.check(ref); err != nil {
		return err
	}
	if err := m.pool.Discard(ref.Key, obj); err != nil {
		return err
	}
	return Teardown(obj)
}

func (m *Stateful) Remove(ref Reference) error {
	if err := m.check(ref); err != nil {
		return err
	}
	idle, err := m.pool.Remove(ref.Key)
	if err != nil {
		return err
	}
	return teardownAll(m.logger, idle)
}

func (m *Stateful) Destroy() error {
	return teardownAll(m.logger, m.pool.Destroy())
}

// Expire 移除空闲超过 idle 的引用并销毁其实例，返回移除的引用数
func (m *Stateful) Expire(idle time.Duration) (int, error) {
	expired := m.pool.Expire(idle)
	var last error
	for _, e := range expired {
		m.logger.Info("reference expired", logging.F("ref", e.Ref))
		if err := teardownAll(m.logger, e.Instances); err != nil {
			last = err
		}
	}
	return len(expired), last
}

func (m *Stateful) Stats() map[string]pool.Stats {
	out := make(map[string]pool.Stats)
	for _, ref := range m.pool.References() {
		if st, err := m.pool.Stats(ref); err == nil {
			out[ref] = st
		}
	}
	return out
}

// References 返回当前有效的引用
func (m *Stateful) References() []Reference {
	keys := m.pool.References()
	refs := make([]Reference, len(keys))
	for i, k := range keys {
		refs[i] = Reference{Component: m.name, Key: k}
	}
	return refs
}

// SetClock 替换空闲计时使用的时钟
func (m *Stateful) SetClock(now func() time.Time) {
	m.pool.SetClock(now)
}

func (m *Stateful) check(ref Reference) error {
	if ref.Component != m.name || ref.Key == "" {
		return fmt.Errorf("%w: %s is not a reference of %s", ErrUnknownReference, ref, m.name)
	}
	return nil
}
