package core

import "errors"

var (
	// ErrUnknownComponent 名称未注册
	ErrUnknownComponent = errors.New("unknown component")
	// ErrDuplicateComponent 名称已被占用
	ErrDuplicateComponent = errors.New("component name already in use")
)
