// Package router 管理路由配置，把 handle 中的处理器绑定到 gin 路由组.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/carevault/pkg/internal/handle"
)

// Register 绑定病历与认证路由，group 通常为 /api/v1.
// handlers 为 nil 时所有路由返回 501，便于服务在缺少依赖时仍能启动.
//
//	POST   /auth/login
//	POST   /auth/logout
//	GET    /auth/me
//	POST   /records
//	GET    /records/search
//	POST   /records/receive
//	GET    /records/:patient_id
//	GET    /records/:patient_id/download
//	GET    /records/:patient_id/text
func Register(group *gin.RouterGroup, h *handle.Handlers) {
	authRoutes := group.Group("/auth")
	recordRoutes := group.Group("/records")

	if h == nil {
		authRoutes.Any("/*any", handle.DefaultHandler)
		recordRoutes.Any("/*any", handle.DefaultHandler)

		return
	}

	{
		authRoutes.POST("/login", h.Login)
		authRoutes.POST("/logout", h.Logout)
		authRoutes.GET("/me", h.Me)
	}

	{
		recordRoutes.POST("", h.UploadRecord)
		recordRoutes.GET("/search", h.SearchRecord)
		recordRoutes.POST("/receive", h.ReceiveRecord)
		recordRoutes.GET("/:patient_id", h.GetRecord)
		recordRoutes.GET("/:patient_id/download", h.DownloadDocument)
		recordRoutes.GET("/:patient_id/text", h.RecordText)
	}

	RegisterStatsRoutes(group, h)
}
