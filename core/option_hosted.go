package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gocrud/container/logging"
)

// WithHostedService 把已部署的组件作为托管服务运行。
// 启动时从组件池借出一个实例并在独立 Goroutine 中调用 Start，实例在服务运行期间一直被持有；
// 停止时取消服务上下文、调用 Stop 并归还实例。
func WithHostedService(name string) Option {
	return func(rt *Runtime) error {
		var (
			mu            sync.Mutex
			service       HostedService
			serviceCancel context.CancelFunc
			done          chan struct{}
		)

		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			h, err := rt.Handle(ctx, name)
			if err != nil {
				return fmt.Errorf("hosted service %s: %w", name, err)
			}

			// 创建服务上下文，生命周期伴随应用运行
			serviceCtx, cancel := context.WithCancel(context.Background())
			started := make(chan error, 1)
			finished := make(chan struct{})

			mu.Lock()
			serviceCancel = cancel
			done = finished
			mu.Unlock()

			// 异步调用 Start，允许 Start 方法阻塞
			go func() {
				defer close(finished)
				err := h.Invoke(serviceCtx, func(ctx context.Context, obj any) error {
					hs, ok := obj.(HostedService)
					if !ok {
						err := fmt.Errorf("hosted service %s: %T does not implement core.HostedService", name, obj)
						started <- err
						return err
					}
					mu.Lock()
					service = hs
					mu.Unlock()
					started <- nil
					return hs.Start(ctx)
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					if rt.ErrorHandler != nil {
						rt.ErrorHandler(fmt.Errorf("hosted service %s exited with error: %w", name, err))
					}
					// 触发应用退出 (Fail Fast)
					rt.Shutdown()
				}
			}()

			select {
			case err := <-started:
				return err
			case <-finished:
				return fmt.Errorf("hosted service %s: could not acquire an instance", name)
			case <-ctx.Done():
				cancel()
				return ctx.Err()
			}
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			mu.Lock()
			hs, cancel, finished := service, serviceCancel, done
			mu.Unlock()
			if cancel == nil {
				return nil
			}

			// 通知 Context 取消
			cancel()
			var err error
			if hs != nil {
				err = hs.Stop(ctx)
			}

			select {
			case <-finished:
			case <-ctx.Done():
				rt.logger.Warn("hosted service stop timeout", logging.F("component", name))
				if err == nil {
					err = ctx.Err()
				}
			}
			return err
		})

		return nil
	}
}

// WorkerFunc 定义简单的后台任务函数
// 这是一个阻塞函数，通过 ctx.Done() 判断退出。
type WorkerFunc func(ctx context.Context) error

// WithWorker 将一个阻塞的函数注册为后台服务
// 框架会自动将其适配为托管服务 (异步启动，Cancel停止)
func WithWorker(fn WorkerFunc) Option {
	return func(rt *Runtime) error {
		var workerCancel context.CancelFunc

		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			// 使用 Background 确保 Worker 存活
			var workerCtx context.Context
			workerCtx, workerCancel = context.WithCancel(context.Background())

			go func() {
				if err := fn(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
					if rt.ErrorHandler != nil {
						rt.ErrorHandler(fmt.Errorf("worker exited with error: %w", err))
					}
					rt.Shutdown()
				}
			}()
			return nil
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if workerCancel != nil {
				workerCancel()
			}
			return nil
		})

		return nil
	}
}
