package web

import (
	"github.com/gin-gonic/gin"

	"github.com/gocrud/container/logging"
)

// Builder Web 主机构建器（基于 Gin）
type Builder struct {
	logger      logging.Logger
	port        int
	engine      *gin.Engine
	prefix      string
	controllers []Controller
}

// NewBuilder 创建 Web 构建器
func NewBuilder() *Builder {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	// 默认中间件：恢复 panic
	engine.Use(gin.Recovery())

	return &Builder{
		logger: logging.NewNop(),
		port:   8080,
		engine: engine,
		prefix: "/debug/container",
	}
}

// UseLogger 设置日志记录器
func (b *Builder) UseLogger(logger logging.Logger) *Builder {
	b.logger = logger
	return b
}

// UsePort 设置端口，0 表示随机端口
func (b *Builder) UsePort(port int) *Builder {
	b.port = port
	return b
}

// UsePrefix 设置控制器路由前缀
func (b *Builder) UsePrefix(prefix string) *Builder {
	b.prefix = prefix
	return b
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// AddControllers 注册控制器
func (b *Builder) AddControllers(controllers ...Controller) *Builder {
	b.controllers = append(b.controllers, controllers...)
	return b
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// Build 挂载控制器路由并构建 Web 主机
func (b *Builder) Build() *Host {
	group := b.engine.Group(b.prefix)
	for _, ctrl := range b.controllers {
		ctrl.MountRoutes(group)
	}
	b.controllers = nil
	return &Host{
		port:   b.port,
		engine: b.engine,
		logger: b.logger,
	}
}
