// Package container 组装组件运行时：注入、实例池、生命周期与诊断。
package container

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocrud/container/core"
	"github.com/gocrud/container/logging"
)

// ShutdownTimeout 是优雅关闭的超时时间
var ShutdownTimeout = 5 * time.Second

// New 创建运行时并应用所有选项
func New(opts ...core.Option) (*core.Runtime, error) {
	rt := core.NewRuntime()
	if err := rt.Apply(opts...); err != nil {
		return nil, err
	}
	return rt, nil
}

// Run 启动运行时并阻塞，直到收到退出信号、运行时请求退出或 ctx 结束，然后优雅关闭
func Run(ctx context.Context, opts ...core.Option) error {
	rt, err := New(opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		// 已初始化的组件同样需要销毁
		stopCtx, stopCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer stopCancel()
		if stopErr := rt.Stop(stopCtx); stopErr != nil {
			rt.Logger().Error("cleanup after failed start", logging.Err(stopErr))
		}
		return err
	}

	// 支持 OS 信号 (Ctrl+C, kill) 和 Runtime 内部触发的退出 (rt.Shutdown)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		rt.Logger().Info("signal received", logging.F("signal", sig.String()))
	case <-rt.Done():
		// 运行时内部请求退出 (例如关键服务崩溃)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()
	return rt.Stop(shutdownCtx)
}
