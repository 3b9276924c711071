package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/container/logging"
)

type subPool struct {
	pool     *Pool
	lastUsed time.Time
}

// Expired 是一个因空闲超时被移除的引用及其空闲实例
type Expired struct {
	Ref       string
	Instances []any
}

// Stateful 为每个组件引用维护一个独立的子池，实例只在所属引用内复用。
// 引用表由一把锁保护，实例的获取与归还在各自子池的锁下进行。
type Stateful struct {
	name   string
	opts   Options
	logger logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	factory   Factory
	refs      map[string]*subPool
	retired   map[string]*Pool
	destroyed bool
}

// NewStateful 创建有状态池
func NewStateful(name string, opts Options) *Stateful {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	opts.Logger = logger
	return &Stateful{
		name:    name,
		opts:    opts,
		logger:  logger.WithFields(logging.F("pool", name)),
		now:     time.Now,
		refs:    make(map[string]*subPool),
		retired: make(map[string]*Pool),
	}
}

// SetClock 替换时钟
func (s *Stateful) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Init 注册构造回调，子池在 Create 时才建立
func (s *Stateful) Init(factory Factory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return &CreationError{Pool: s.name, Op: "init", Err: ErrDestroyed}
	}
	s.factory = factory
	return nil
}

// Create 为引用 ref 建立子池
func (s *Stateful) Create(ctx context.Context, ref string) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return &CreationError{Pool: s.name, Op: "create", Err: ErrDestroyed}
	}
	if s.factory == nil {
		s.mu.Unlock()
		return &CreationError{Pool: s.name, Op: "create", Err: ErrNotInitialized}
	}
	if _, ok := s.refs[ref]; ok {
		s.mu.Unlock()
		return &CreationError{Pool: s.name, Op: "create", Err: fmt.Errorf("%w: %s", ErrDuplicateReference, ref)}
	}
	sub := &subPool{pool: New(s.name+"/"+ref, s.opts), lastUsed: s.now()}
	s.refs[ref] = sub
	factory := s.factory
	s.mu.Unlock()

	if err := sub.pool.Init(ctx, factory); err != nil {
		// 预填充失败时撤销引用，已建好的实例随错误交给调用方销毁
		s.mu.Lock()
		if s.refs[ref] == sub {
			delete(s.refs, ref)
		}
		s.mu.Unlock()
		return withOrphans(err, s.name+"/"+ref, "create", sub.pool.Destroy())
	}
	s.logger.Debug("reference created", logging.F("ref", ref))
	return nil
}

// Get 从引用的子池获取实例
func (s *Stateful) Get(ctx context.Context, ref string) (any, error) {
	sub, err := s.touch(ref)
	if err != nil {
		return nil, &CreationError{Pool: s.name, Op: "get", Err: err}
	}
	return sub.pool.Get(ctx)
}

// Free 把实例归还到引用的子池；引用已被移除时返回 destroy=true
func (s *Stateful) Free(ref string, obj any) (bool, error) {
	p, err := s.poolFor(ref, true)
	if err != nil {
		return false, err
	}
	destroy, err := p.Free(obj)
	if err == nil {
		s.settle(ref, p)
	}
	return destroy, err
}

// Discard 从引用的子池永久移除实例
func (s *Stateful) Discard(ref string, obj any) error {
	p, err := s.poolFor(ref, true)
	if err != nil {
		return err
	}
	if err := p.Discard(obj); err != nil {
		return err
	}
	s.settle(ref, p)
	return nil
}

// Remove 移除引用并返回其空闲实例；仍被持有的实例在归还时报告销毁
func (s *Stateful) Remove(ref string) ([]any, error) {
	s.mu.Lock()
	sub, ok := s.refs[ref]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownReference, ref)
	}
	delete(s.refs, ref)
	s.mu.Unlock()

	out := sub.pool.Destroy()
	s.settle(ref, sub.pool)
	s.logger.Debug("reference removed", logging.F("ref", ref), logging.F("idle", len(out)))
	return out, nil
}

// Destroy 销毁全部子池并返回所有空闲实例
func (s *Stateful) Destroy() []any {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	refs := s.refs
	s.refs = make(map[string]*subPool)
	s.mu.Unlock()

	var out []any
	for ref, sub := range refs {
		out = append(out, sub.pool.Destroy()...)
		s.settle(ref, sub.pool)
	}
	return out
}

// Expire 移除空闲时间超过 idle 且没有实例被持有的引用。
// 判定与摘除在同一临界区内完成，Get 刷新过的引用不会被摘除。
func (s *Stateful) Expire(idle time.Duration) []Expired {
	s.mu.Lock()
	now := s.now()
	victims := make(map[string]*subPool)
	for ref, sub := range s.refs {
		if now.Sub(sub.lastUsed) < idle {
			continue
		}
		if st := sub.pool.Stats(); st.InUse > 0 || st.Pending > 0 {
			continue
		}
		victims[ref] = sub
		delete(s.refs, ref)
	}
	s.mu.Unlock()

	refs := make([]string, 0, len(victims))
	for ref := range victims {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	expired := make([]Expired, 0, len(refs))
	for _, ref := range refs {
		sub := victims[ref]
		instances := sub.pool.Destroy()
		s.settle(ref, sub.pool)
		s.logger.Debug("reference expired", logging.F("ref", ref), logging.F("idle", len(instances)))
		expired = append(expired, Expired{Ref: ref, Instances: instances})
	}
	return expired
}

// References 返回当前全部引用
func (s *Stateful) References() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]string, 0, len(s.refs))
	for ref := range s.refs {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Stats 返回引用子池的状态快照
func (s *Stateful) Stats(ref string) (Stats, error) {
	p, err := s.poolFor(ref, false)
	if err != nil {
		return Stats{}, err
	}
	return p.Stats(), nil
}

// Options 返回子池配置
func (s *Stateful) Options() Options { return s.opts }

func (s *Stateful) touch(ref string) (*subPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrDestroyed
	}
	sub, ok := s.refs[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReference, ref)
	}
	sub.lastUsed = s.now()
	return sub, nil
}

func (s *Stateful) poolFor(ref string, touch bool) (*Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.refs[ref]; ok {
		if touch {
			sub.lastUsed = s.now()
		}
		return sub.pool, nil
	}
	if p, ok := s.retired[ref]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownReference, ref)
}

// settle 跟踪已销毁但仍有实例在外的子池，直到它们全部归还
func (s *Stateful) settle(ref string, p *Pool) {
	if p.State() != StateDestroyed {
		return
	}
	live := p.Stats().Live
	s.mu.Lock()
	defer s.mu.Unlock()
	if live > 0 {
		s.retired[ref] = p
	} else if s.retired[ref] == p {
		delete(s.retired, ref)
	}
}
