package component

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocrud/container/pool"
)

// Reference 标识组件的一个引用。无状态组件的 Key 为空。
type Reference struct {
	Component string `json:"component"`
	Key       string `json:"key,omitempty"`
}

func (r Reference) String() string {
	if r.Key == "" {
		return r.Component
	}
	return r.Component + "/" + r.Key
}

// PostConstructor 在全部注入完成后调用
type PostConstructor interface {
	PostConstruct() error
}

// PreDestroyer 在实例销毁前调用
type PreDestroyer interface {
	PreDestroy() error
}

// Manager 管理组件实例的创建、借还与销毁
type Manager interface {
	// Name 返回组件名
	Name() string
	// Stateful 报告是否为有状态组件
	Stateful() bool
	// Init 注册构造回调
	Init(ctx context.Context, factory pool.Factory) error
	// Create 创建一个组件引用
	Create(ctx context.Context) (Reference, error)
	// GetComponentObject 获取引用下的一个实例
	GetComponentObject(ctx context.Context, ref Reference) (any, error)
	// FreeComponentObject 归还实例
	FreeComponentObject(ref Reference, obj any) error
	// DiscardComponentObject 丢弃不可用的实例
	DiscardComponentObject(ref Reference, obj any) error
	// Remove 使引用失效并销毁其实例
	Remove(ref Reference) error
	// Destroy 销毁全部实例
	Destroy() error
	// Stats 返回各引用的池状态
	Stats() map[string]pool.Stats
}

// Lookup 按组件名解析可注入的值
type Lookup interface {
	Lookup(ctx context.Context, name string) (any, error)
}

// LookupFunc 是 Lookup 的函数形式
type LookupFunc func(ctx context.Context, name string) (any, error)

// Lookup 实现 Lookup
func (f LookupFunc) Lookup(ctx context.Context, name string) (any, error) {
	return f(ctx, name)
}

type referenceKey struct{}

// WithReference 把正在进行的组件引用放入 ctx
func WithReference(ctx context.Context, ref Reference) context.Context {
	return context.WithValue(ctx, referenceKey{}, ref)
}

// ReferenceFrom 取出 ctx 中的组件引用
func ReferenceFrom(ctx context.Context) (Reference, bool) {
	ref, ok := ctx.Value(referenceKey{}).(Reference)
	return ref, ok
}

// Teardown 调用实例的 PreDestroy 钩子
func Teardown(obj any) (err error) {
	d, ok := obj.(PreDestroyer)
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pre-destroy panicked: %v", r)
		}
	}()
	return d.PreDestroy()
}

// ErrUnknownReference 引用不属于该组件
var ErrUnknownReference = errors.New("reference does not belong to component")
