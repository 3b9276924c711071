package pool

import (
	"context"
	"sync/atomic"
)

type ownerKey struct{}

// Owner 标识一个逻辑调用方，可重入池据此识别嵌套获取
type Owner struct {
	id uint64
}

var ownerSeq atomic.Uint64

// ID 返回调用方序号
func (o *Owner) ID() uint64 { return o.id }

// WithOwner 为 ctx 绑定一个调用方身份；已绑定时原样返回
func WithOwner(ctx context.Context) context.Context {
	if _, ok := OwnerFrom(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, ownerKey{}, &Owner{id: ownerSeq.Add(1)})
}

// OwnerFrom 取出 ctx 绑定的调用方身份
func OwnerFrom(ctx context.Context) (*Owner, bool) {
	if ctx == nil {
		return nil, false
	}
	o, ok := ctx.Value(ownerKey{}).(*Owner)
	return o, ok
}
