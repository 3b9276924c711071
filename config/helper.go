package config

// Load 绑定指定节的配置到 T，section 为空时绑定根节点
func Load[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}
