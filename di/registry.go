package di

import (
	"sync"

	"github.com/gocrud/container/logging"
)

// Registry 持有每个组件定义的目标枚举、装配方案与依赖集合缓存。
// 缓存只插入不修改，定义卸载时由 Close 清除。
type Registry struct {
	directory Directory
	coercer   Coercer
	logger    logging.Logger

	targets sync.Map // *Definition -> *targetsEntry
	plans   sync.Map // planKey -> *planEntry
	deps    sync.Map // *Definition -> *depsEntry
}

// RegistryOption 配置 Registry
type RegistryOption func(*Registry)

// WithCoercer 替换字面量转换器
func WithCoercer(c Coercer) RegistryOption {
	return func(r *Registry) {
		r.coercer = c
	}
}

// WithLogger 设置日志记录器
func WithLogger(l logging.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry 创建注册表。dir 提供按类型匹配与依赖存在性检查，可以为 nil。
func NewRegistry(dir Directory, opts ...RegistryOption) *Registry {
	r := &Registry{
		directory: dir,
		coercer:   YamlCoercer{},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type targetsEntry struct {
	targets *Targets
	err     error
}

// Targets 返回定义的全部可注入目标
func (r *Registry) Targets(def *Definition) (*Targets, error) {
	if v, ok := r.targets.Load(def); ok {
		e := v.(*targetsEntry)
		return e.targets, e.err
	}
	ts, err := enumerateTargets(def)
	v, _ := r.targets.LoadOrStore(def, &targetsEntry{targets: ts, err: err})
	e := v.(*targetsEntry)
	return e.targets, e.err
}

// Prepare 提前构建装配方案，使结构性错误在启动时暴露
func (r *Registry) Prepare(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	_, err := r.plan(def)
	return err
}

// ConstructorInjection 解析构造槽位。
// 构造函数被声明为可选且无法解析时返回 (nil, nil)。
func (r *Registry) ConstructorInjection(def *Definition, ctx ComponentContext) (*ConstructorInjection, error) {
	p, err := r.plan(def)
	if err != nil {
		return nil, err
	}
	if p.construct == nil {
		return nil, nil
	}
	args, ok, err := resolveSlot(def.Name, p.construct, ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Debug("optional constructor not resolved",
			logging.F("component", def.Name),
			logging.F("target", p.construct.target.String()))
		return nil, nil
	}
	return newConstructorInjection(def, p.targets, p.construct, args, ctx)
}

// SetterInjections 解析全部字段与 setter 注入，按声明顺序返回。
// 未能解析的可选目标被跳过。
func (r *Registry) SetterInjections(def *Definition, ctx ComponentContext) ([]*SetterInjection, error) {
	p, err := r.plan(def)
	if err != nil {
		return nil, err
	}
	out := make([]*SetterInjection, 0, len(p.setters))
	for _, sp := range p.setters {
		args, ok, err := resolveSlot(def.Name, sp, ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			r.logger.Debug("optional target skipped",
				logging.F("component", def.Name),
				logging.F("target", sp.target.String()))
			continue
		}
		si, err := newSetterInjection(def, sp, args)
		if err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, nil
}

// Close 清除定义的全部缓存，在组件卸载时调用
func (r *Registry) Close(def *Definition) {
	r.targets.Delete(def)
	r.plans.Delete(keyOf(def))
	r.deps.Delete(def)
}
