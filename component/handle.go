package component

import (
	"context"
	"fmt"

	"github.com/gocrud/container/pool"
)

// Handle 是注入给其他组件的池化访问入口。
// 每次 Invoke 借出一个实例，调用结束后归还；同一调用链内的嵌套调用复用同一身份，
// 可重入池因此不会自锁。
type Handle struct {
	manager Manager
	ref     Reference
}

// NewHandle 创建指向 ref 的句柄
func NewHandle(m Manager, ref Reference) *Handle {
	return &Handle{manager: m, ref: ref}
}

// Reference 返回句柄指向的组件引用
func (h *Handle) Reference() Reference { return h.ref }

// Invoke 借出实例执行 fn，fn 收到的 ctx 携带调用方身份，嵌套调用应继续传递它。
// fn 发生 panic 时实例被丢弃，错误返回给调用方。
func (h *Handle) Invoke(ctx context.Context, fn func(ctx context.Context, obj any) error) (err error) {
	ctx = pool.WithOwner(ctx)
	obj, err := h.manager.GetComponentObject(ctx, h.ref)
	if err != nil {
		return err
	}

	broken := true
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("component %s: panic: %v", h.ref, r)
		}
		if broken {
			if derr := h.manager.DiscardComponentObject(h.ref, obj); derr != nil && err == nil {
				err = derr
			}
			return
		}
		if ferr := h.manager.FreeComponentObject(h.ref, obj); ferr != nil && err == nil {
			err = ferr
		}
	}()

	err = fn(ctx, obj)
	broken = false
	return err
}

// Use 以具体类型借出实例
func Use[T any](ctx context.Context, h *Handle, fn func(context.Context, T) error) error {
	return h.Invoke(ctx, func(ctx context.Context, obj any) error {
		v, ok := obj.(T)
		if !ok {
			return fmt.Errorf("component %s: instance is %T, not %T", h.ref, obj, *new(T))
		}
		return fn(ctx, v)
	})
}
