package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/carevault/pkg/configs"
)

// CORSMiddleware CORS中间件. 会话 cookie 需要凭据，"*" 时按请求来源回写.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowHeaders = append(config.AllowHeaders, "Authorization")
	config.ExposeHeaders = []string{"Content-Disposition", "Content-Length"}
	config.AllowCredentials = true

	allowAll := cfg.Debug || len(cfg.CORSOrigins) == 0

	for _, o := range cfg.CORSOrigins {
		if o == "*" {
			allowAll = true
		}
	}

	if allowAll {
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = cfg.CORSOrigins
	}

	return cors.New(config)
}
