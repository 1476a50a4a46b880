package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/carevault/pkg/internal/handle"
)

// RegisterStatsRoutes 注册操作日志与统计路由.
func RegisterStatsRoutes(g *gin.RouterGroup, h *handle.Handlers) {
	g.GET("/logs", h.ListLogs)

	statsRoutes := g.Group("/stats")
	{
		statsRoutes.GET("/departments", h.DepartmentStats)
	}
}
