// Package httpserver serves the health, readiness and metrics endpoints of the triage runner.
package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inboxtriage/pkg/otel"
)

// Pinger 就绪检查依赖（共享存储）
type Pinger func(ctx context.Context) error

// StatusFunc 返回进程内状态，挂在 /status 上
type StatusFunc func() any

type Router struct {
	Engine *gin.Engine
}

func NewRouter(ping Pinger, status StatusFunc) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), otel.GinMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		if ping == nil {
			c.JSON(200, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			c.JSON(503, gin.H{"status": "store_not_ready", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if status != nil {
		r.GET("/status", func(c *gin.Context) {
			c.JSON(200, status())
		})
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
