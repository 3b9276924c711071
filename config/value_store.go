package config

import (
	"sync/atomic"
)

// ValueStore 使用 atomic.Pointer 存储配置数据，实现无锁读取
type ValueStore struct {
	value atomic.Pointer[map[string]any]
}

// NewValueStore 创建新的 ValueStore
func NewValueStore() *ValueStore {
	s := &ValueStore{}
	s.Store(make(map[string]any))
	return s
}

// Load 加载当前配置快照，调用方不得修改
func (s *ValueStore) Load() map[string]any {
	p := s.value.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Store 原子替换配置数据
func (s *ValueStore) Store(data map[string]any) {
	s.value.Store(&data)
}
