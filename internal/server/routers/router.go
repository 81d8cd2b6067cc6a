package routers

import (
	"github.com/gin-gonic/gin"

	"github.com/JasonSung0724/bagel-shopline/internal/server/handlers/sync"
	"github.com/JasonSung0724/bagel-shopline/internal/server/middlewares"
)

// SetupRoutes 配置所有路由，使用 Route Group 分类
func SetupRoutes(syncHandler *sync.SyncHandler) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.ErrorHandler())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "delsync",
			"message": "Service is running",
		})
	})

	v1 := r.Group("/api/v1")
	{
		syncs := v1.Group("/syncs")
		{
			syncs.POST("", syncHandler.Create)
		}

		tasks := v1.Group("/tasks")
		{
			tasks.GET("", syncHandler.List)
			tasks.GET("/:id", syncHandler.Get)
		}
	}

	return r
}
