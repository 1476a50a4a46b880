package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/carevault/pkg/internal/handle"
)

// RegisterSchedulerRoutes 注册调度器相关路由.
func RegisterSchedulerRoutes(g *gin.RouterGroup) {
	jobs := g.Group("/scheduler/jobs")
	{
		jobs.GET("", handle.SchedulerJobs)
		jobs.POST("/stop", handle.SchedulerStopJobs)
		jobs.GET("/:name", handle.SchedulerJob)
		jobs.POST("/:name/run", handle.SchedulerRunJob)
		jobs.DELETE("/:name", handle.SchedulerRemoveJob)
	}

	g.GET("/scheduler/queue/waiting", handle.SchedulerQueueWaiting)
}
