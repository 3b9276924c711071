package component

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gocrud/container/logging"
)

// Expirer 是可以按空闲时间回收引用的组件
type Expirer interface {
	Name() string
	Expire(idle time.Duration) (int, error)
}

// Reaper 定期回收有状态组件的空闲引用
type Reaper struct {
	cron   *cron.Cron
	logger logging.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
}

// NewReaper 创建回收器
func NewReaper(logger logging.Logger) *Reaper {
	if logger == nil {
		logger = logging.NewNop()
	}
	cl := newCronLogger(logger)
	return &Reaper{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Watch 每隔 interval 回收 e 中空闲超过 idle 的引用
func (r *Reaper) Watch(e Expirer, interval, idle time.Duration) error {
	if interval <= 0 || idle <= 0 {
		return fmt.Errorf("reaper: invalid interval %v or idle timeout %v for %s", interval, idle, e.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.entries[e.Name()]; ok {
		r.cron.Remove(id)
	}
	id, err := r.cron.AddFunc("@every "+interval.String(), func() {
		r.Sweep(e, idle)
	})
	if err != nil {
		return fmt.Errorf("reaper: failed to schedule %s: %w", e.Name(), err)
	}
	r.entries[e.Name()] = id
	r.logger.Info(fmt.Sprintf("Reaper watching '%s' every %v", e.Name(), interval))
	return nil
}

// Unwatch 停止回收指定组件
func (r *Reaper) Unwatch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.entries[name]; ok {
		r.cron.Remove(id)
		delete(r.entries, name)
	}
}

// Sweep 立即执行一次回收
func (r *Reaper) Sweep(e Expirer, idle time.Duration) int {
	n, err := e.Expire(idle)
	if err != nil {
		r.logger.Error("reaper teardown failed", logging.F("component", e.Name()), logging.Err(err))
	}
	if n > 0 {
		r.logger.Info(fmt.Sprintf("Reaper expired %d reference(s) of '%s'", n, e.Name()))
	}
	return n
}

// Start 启动调度
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		r.cron.Start()
		r.started = true
	}
}

// Stop 停止调度并等待正在执行的回收结束或 ctx 超时
func (r *Reaper) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.mu.Unlock()

	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger 适配器：将框架日志接口适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Err(err))
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.F(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
