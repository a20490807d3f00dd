package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"inboxtriage/pkg/otel"
	"inboxtriage/pkg/rbac"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(controlHandler *ControlHandler, jwtSecret string, log *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), RequestLogger(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.GET("/categories", controlHandler.Categories)
	r.GET("/stats", controlHandler.Stats)
	r.GET("/stats/categories", controlHandler.StatsByCategory)
	r.GET("/state", controlHandler.State)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/enable", RequirePermission(rbac.PermissionToggle), controlHandler.Enable)
		auth.POST("/disable", RequirePermission(rbac.PermissionToggle), controlHandler.Disable)
		auth.PUT("/backend", RequirePermission(rbac.PermissionSetBackend), controlHandler.SetBackend)
		auth.POST("/stats/reset-check", RequirePermission(rbac.PermissionResetStats), controlHandler.ResetCheck)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
