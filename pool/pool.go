package pool

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/gocrud/container/logging"
)

// State 是池的生命周期状态，只会单向推进
type State int32

const (
	StateEmpty State = iota
	StatePopulating
	StatePopulated
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StatePopulating:
		return "POPULATING"
	case StatePopulated:
		return "POPULATED"
	case StateDestroyed:
		return "DESTROYED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Factory 构造一个新实例
type Factory func(ctx context.Context) (any, error)

// Options 池配置
type Options struct {
	// MinSize 预先创建的实例数
	MinSize int
	// MaxSize 实例上限，0 表示不限
	MaxSize int
	// Reentrant 允许同一调用方重复获取其已持有的实例而不阻塞
	Reentrant bool
	// Lazy 推迟到首次获取时再创建 MinSize 个实例
	Lazy bool
	// Logger 日志记录器，为空时不输出
	Logger logging.Logger
}

// Stats 是池的状态快照
type Stats struct {
	State     string `json:"state"`
	Live      int    `json:"live"`
	Idle      int    `json:"idle"`
	InUse     int    `json:"inUse"`
	Pending   int    `json:"pending"`
	MinSize   int    `json:"minSize"`
	MaxSize   int    `json:"maxSize"`
	Reentrant bool   `json:"reentrant"`
}

type entry struct {
	obj   any
	owner *Owner
	holds int
}

// Pool 是单个组件的实例池。获取、归还、丢弃与销毁都在同一把锁下串行，
// 等待方通过每次状态变化时关闭并替换的 changed 通道唤醒。
type Pool struct {
	name   string
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	state   State
	factory Factory
	idle    []any
	entries map[any]*entry
	owners  map[*Owner]*entry
	pending int
	changed chan struct{}
}

// New 创建一个池
func New(name string, opts Options) *Pool {
	if opts.MinSize < 0 {
		opts.MinSize = 0
	}
	if opts.MaxSize > 0 && opts.MinSize > opts.MaxSize {
		opts.MinSize = opts.MaxSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		name:    name,
		opts:    opts,
		logger:  logger.WithFields(logging.F("pool", name)),
		entries: make(map[any]*entry),
		owners:  make(map[*Owner]*entry),
		changed: make(chan struct{}),
	}
}

// Name 返回池名
func (p *Pool) Name() string { return p.name }

// Options 返回池配置
func (p *Pool) Options() Options { return p.opts }

// Init 注册构造回调。非惰性池立即同步创建 MinSize 个实例。
func (p *Pool) Init(ctx context.Context, factory Factory) error {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return &CreationError{Pool: p.name, Op: "init", Err: ErrDestroyed}
	}
	p.factory = factory
	p.mu.Unlock()

	if p.opts.Lazy || p.opts.MinSize == 0 {
		return nil
	}
	return p.populate(ctx)
}

// populate 把实例数补足到 MinSize
func (p *Pool) populate(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateEmpty || p.factory == nil {
		p.mu.Unlock()
		return nil
	}
	n := p.opts.MinSize - len(p.entries) - p.pending
	if n <= 0 {
		p.mu.Unlock()
		return nil
	}
	p.state = StatePopulating
	p.pending += n
	factory := p.factory
	p.mu.Unlock()

	p.logger.Debug("populating pool", logging.F("count", n))

	var firstErr error
	created := make([]any, 0, n)
	for i := 0; i < n; i++ {
		obj, err := p.construct(ctx, factory)
		if err != nil {
			firstErr = err
			break
		}
		created = append(created, obj)
	}

	p.mu.Lock()
	p.pending -= n
	if p.state == StateDestroyed {
		// 构造期间池已销毁，新实例不再入池
		p.broadcast()
		p.mu.Unlock()
		p.logger.Debug("pool destroyed during population", logging.F("orphans", len(created)))
		return &CreationError{Pool: p.name, Op: "populate", Err: ErrDestroyed, Orphans: created}
	}
	for _, obj := range created {
		p.entries[obj] = &entry{obj: obj}
		p.idle = append(p.idle, obj)
	}
	if p.state == StatePopulating {
		p.state = StatePopulated
	}
	p.broadcast()
	p.mu.Unlock()

	if firstErr != nil {
		return &CreationError{Pool: p.name, Op: "populate", Err: firstErr}
	}
	return nil
}

// Get 获取一个实例，必要时阻塞直到有实例可用、ctx 被取消或池被销毁
func (p *Pool) Get(ctx context.Context) (any, error) {
	if p.opts.MinSize > 0 && p.currentState() == StateEmpty {
		if err := p.populate(ctx); err != nil {
			return nil, err
		}
	}

	owner, _ := OwnerFrom(ctx)
	if !p.opts.Reentrant {
		owner = nil
	}

	p.mu.Lock()
	for {
		if p.state == StateDestroyed {
			p.mu.Unlock()
			return nil, &CreationError{Pool: p.name, Op: "get", Err: ErrDestroyed}
		}

		// 同一调用方重入
		if owner != nil {
			if e, ok := p.owners[owner]; ok {
				e.holds++
				p.mu.Unlock()
				return e.obj, nil
			}
		}

		if len(p.idle) > 0 {
			obj := p.idle[0]
			p.idle[0] = nil
			p.idle = p.idle[1:]
			p.hold(p.entries[obj], owner)
			p.mu.Unlock()
			return obj, nil
		}

		if p.factory == nil {
			p.mu.Unlock()
			return nil, &CreationError{Pool: p.name, Op: "get", Err: ErrNotInitialized}
		}

		if p.opts.MaxSize == 0 || len(p.entries)+p.pending < p.opts.MaxSize {
			return p.create(ctx, owner)
		}

		ch := p.changed
		p.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, &CreationError{Pool: p.name, Op: "get", Err: ctx.Err()}
		}
		p.mu.Lock()
	}
}

// create 在锁外构造新实例；调用时持有锁，返回时已释放
func (p *Pool) create(ctx context.Context, owner *Owner) (any, error) {
	p.pending++
	if p.state == StateEmpty {
		p.state = StatePopulating
	}
	factory := p.factory
	p.mu.Unlock()

	obj, err := p.construct(ctx, factory)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--
	if p.state == StatePopulating {
		p.state = StatePopulated
	}
	if err != nil {
		p.broadcast()
		return nil, &CreationError{Pool: p.name, Op: "create", Err: err}
	}
	if p.state == StateDestroyed {
		p.broadcast()
		return nil, &CreationError{Pool: p.name, Op: "create", Err: ErrDestroyed, Orphans: []any{obj}}
	}
	e := &entry{obj: obj}
	p.entries[obj] = e
	p.hold(e, owner)
	return obj, nil
}

func (p *Pool) construct(ctx context.Context, factory Factory) (any, error) {
	obj, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	if obj == nil || !reflect.ValueOf(obj).Comparable() {
		return nil, fmt.Errorf("%w: %T cannot be tracked by identity", ErrUnknownInstance, obj)
	}
	return obj, nil
}

func (p *Pool) hold(e *entry, owner *Owner) {
	e.holds = 1
	e.owner = owner
	if owner != nil {
		p.owners[owner] = e
	}
}

// Free 归还实例。实例在池销毁后归还时返回 destroy=true，调用方应自行销毁它。
func (p *Pool) Free(obj any) (destroy bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(obj)
	if err != nil {
		return false, err
	}
	if e.holds == 0 {
		return false, fmt.Errorf("%w: %T is not held", ErrUnknownInstance, obj)
	}
	e.holds--
	if e.holds > 0 {
		return false, nil
	}
	p.release(e)

	if p.state == StateDestroyed {
		delete(p.entries, obj)
		p.broadcast()
		return true, nil
	}
	p.idle = append(p.idle, obj)
	p.broadcast()
	return false, nil
}

// Discard 永久移除实例并腾出一个名额，不论它当前是否被持有
func (p *Pool) Discard(obj any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(obj)
	if err != nil {
		return err
	}
	p.release(e)
	delete(p.entries, obj)
	for i, o := range p.idle {
		if o == obj {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			break
		}
	}
	p.broadcast()
	p.logger.Debug("instance discarded", logging.F("live", len(p.entries)))
	return nil
}

// Destroy 将池置为终态，唤醒全部等待方，并返回所有空闲实例交由调用方销毁。
// 仍被持有的实例在归还时由 Free 报告。
func (p *Pool) Destroy() []any {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDestroyed {
		return nil
	}
	p.state = StateDestroyed
	out := p.idle
	p.idle = nil
	for _, obj := range out {
		delete(p.entries, obj)
	}
	p.broadcast()
	p.logger.Debug("pool destroyed", logging.F("idle", len(out)), logging.F("inUse", len(p.entries)))
	return out
}

// State 返回当前状态
func (p *Pool) State() State {
	return p.currentState()
}

// Stats 返回状态快照
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		State:     p.state.String(),
		Live:      len(p.entries),
		Idle:      len(p.idle),
		InUse:     len(p.entries) - len(p.idle),
		Pending:   p.pending,
		MinSize:   p.opts.MinSize,
		MaxSize:   p.opts.MaxSize,
		Reentrant: p.opts.Reentrant,
	}
}

func (p *Pool) currentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pool) lookup(obj any) (*entry, error) {
	if obj == nil || !reflect.ValueOf(obj).Comparable() {
		return nil, fmt.Errorf("%w: %T", ErrUnknownInstance, obj)
	}
	e, ok := p.entries[obj]
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownInstance, obj)
	}
	return e, nil
}

func (p *Pool) release(e *entry) {
	if e.owner != nil {
		if p.owners[e.owner] == e {
			delete(p.owners, e.owner)
		}
		e.owner = nil
	}
	e.holds = 0
}

// broadcast 唤醒全部等待方，调用时须持有锁
func (p *Pool) broadcast() {
	close(p.changed)
	p.changed = make(chan struct{})
}
