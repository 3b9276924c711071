package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/container/core"
)

// Controller 简单的控制器接口标记
type Controller interface {
	// MountRoutes 注册路由
	MountRoutes(router gin.IRouter)
}

// Diagnostics 暴露运行时的组件、依赖与池状态
type Diagnostics struct {
	rt *core.Runtime
}

// NewDiagnostics 创建诊断控制器
func NewDiagnostics(rt *core.Runtime) *Diagnostics {
	return &Diagnostics{rt: rt}
}

// MountRoutes 注册路由
func (d *Diagnostics) MountRoutes(router gin.IRouter) {
	router.GET("/components", d.components)
	router.GET("/components/:name/dependencies", d.dependencies)
	router.GET("/components/:name/pool", d.pool)
}

func (d *Diagnostics) components(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"started":    d.rt.Started(),
		"order":      d.rt.Order(),
		"components": d.rt.Components(),
	})
}

func (d *Diagnostics) dependencies(c *gin.Context) {
	name := c.Param("name")
	deps, err := d.rt.Dependencies(name)
	if err != nil {
		d.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "dependencies": deps})
}

func (d *Diagnostics) pool(c *gin.Context) {
	name := c.Param("name")
	stats, err := d.rt.PoolStats(name)
	if err != nil {
		d.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "references": stats})
}

func (d *Diagnostics) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, core.ErrUnknownComponent) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
