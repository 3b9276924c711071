package config

import (
	"strings"
	"sync"
)

// PathCache 缓存配置路径解析结果
type PathCache struct {
	cache sync.Map
}

// GetPathSegments 获取路径片段，如果缓存不存在则解析并缓存
func (c *PathCache) GetPathSegments(path string) []string {
	if v, ok := c.cache.Load(path); ok {
		return v.([]string)
	}

	// 解析路径：支持 : 和 . 作为分隔符
	parts := strings.Split(strings.ReplaceAll(path, ":", "."), ".")
	v, _ := c.cache.LoadOrStore(path, parts)
	return v.([]string)
}

// globalPathCache 全局路径缓存实例
var globalPathCache = &PathCache{}

// lookupKey 优先精确匹配，其次忽略大小写匹配（环境变量源的键为小写）
func lookupKey(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}
