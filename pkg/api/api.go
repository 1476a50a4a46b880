// Package api 组装 HTTP 接口，把各路由组挂到 gin 引擎上.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/internal/handle"
	"github.com/yeisme/carevault/pkg/internal/router"
)

// BasePath 所有业务接口的前缀.
const BasePath = "/api/v1"

// RegisterGroup 注册 /api/v1 下的全部路由以及调试用的 Swagger 文档.
func RegisterGroup(e *gin.Engine, h *handle.Handlers, server configs.ServerConfig) *gin.RouterGroup {
	g := e.Group(BasePath)

	router.Register(g, h)
	router.RegisterHealthCheckRoute(g)
	router.RegisterSchedulerRoutes(g)
	router.RegisterSwaggerRoute(e, server)

	return g
}
