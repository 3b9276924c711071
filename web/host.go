package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/container/logging"
)

// Host Web 主机，实现 core.HostedService
type Host struct {
	port   int
	engine *gin.Engine
	logger logging.Logger

	mu      sync.Mutex
	server  *http.Server
	addr    string
	stopped bool
}

// Address 获取监听地址，仅在 Start 后有效
func (h *Host) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Handler 返回底层 HTTP 处理器
func (h *Host) Handler() http.Handler {
	return h.engine
}

// Start 启动 Web 主机
// 注意：此方法会阻塞，直到服务退出。
func (h *Host) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", h.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{Handler: h.engine}
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ln.Close()
	}
	h.server = server
	h.addr = ln.Addr().String()
	h.mu.Unlock()

	h.logger.Info("Web host started", logging.F("address", ln.Addr().String()))

	// Serve 会一直阻塞直到 Shutdown 被调用或发生错误
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Error("Web host error", logging.Err(err))
		return err
	}
	return nil
}

// Stop 停止 Web 主机
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	server := h.server
	h.stopped = true
	h.mu.Unlock()
	if server == nil {
		return nil
	}

	h.logger.Info("Stopping web host")
	if err := server.Shutdown(ctx); err != nil {
		h.logger.Error("Failed to shutdown web host gracefully", logging.Err(err))
		return err
	}
	h.logger.Info("Web host stopped")
	return nil
}
