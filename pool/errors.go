package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrDestroyed 池已销毁
	ErrDestroyed = errors.New("pool destroyed")
	// ErrUnknownInstance 实例不属于该池或当前未被持有
	ErrUnknownInstance = errors.New("instance not managed by pool")
	// ErrUnknownReference 有状态池中不存在该引用
	ErrUnknownReference = errors.New("unknown component reference")
	// ErrDuplicateReference 引用已存在
	ErrDuplicateReference = errors.New("component reference already exists")
	// ErrNotInitialized 尚未注册构造回调
	ErrNotInitialized = errors.New("pool not initialized")
)

// CreationError 表示获取实例失败：等待被取消，或构造回调返回了错误
type CreationError struct {
	Pool string
	Op   string
	Err  error
	// Orphans 是已经构造但没有被池接纳的实例，调用方负责销毁
	Orphans []any
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("pool %s: %s: %v", e.Pool, e.Op, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

// IsCreationError 判断 err 链中是否包含 CreationError
func IsCreationError(err error) bool {
	var ce *CreationError
	return errors.As(err, &ce)
}

// Orphans 返回 err 链中 CreationError 携带的未被接纳实例
func Orphans(err error) []any {
	var ce *CreationError
	if errors.As(err, &ce) {
		return ce.Orphans
	}
	return nil
}

// withOrphans 把实例附加到 err 上交给调用方销毁
func withOrphans(err error, pool, op string, objs []any) error {
	if len(objs) == 0 {
		return err
	}
	var ce *CreationError
	if errors.As(err, &ce) {
		ce.Orphans = append(ce.Orphans, objs...)
		return err
	}
	return &CreationError{Pool: pool, Op: op, Err: err, Orphans: objs}
}
