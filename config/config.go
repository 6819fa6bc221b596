package config

import (
	"context"
)

// New 创建配置加载器。
//
// 加载器创建后处于未加载状态，需调用 Load 完成实际加载。
func New(opts ...Option) (Loader, error) {
	return newLoader(opts...)
}

// MustLoad 创建加载器并立即加载配置，任一步骤失败时 panic。
// 仅用于进程初始化阶段。
func MustLoad(opts ...Option) Loader {
	loader, err := New(opts...)
	if err != nil {
		panic(err)
	}
	if err := loader.Load(context.Background()); err != nil {
		panic(err)
	}
	return loader
}
