package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/carevault/pkg/configs"
	ctxPkg "github.com/yeisme/carevault/pkg/context"
	"github.com/yeisme/carevault/pkg/internal/auth"
)

const principalKey = "carevault.principal"

// 代理注入的用户头，按顺序取第一个非空值.
var proxyUserHeaders = []string{"X-Auth-Request-User", "X-Auth-Request-Email", "X-Forwarded-User", "X-Forwarded-Email"}

// AuthMiddleware 校验会话并把用户名写入请求 context.
//   - 会话令牌取自 Authorization: Bearer 或 cookie
//   - trust_proxy 时接受 oauth2-proxy 等注入的用户头
//   - dev_allow_query 时允许 ?user= 兜底，仅用于本地调试
//   - skip_paths 中的前缀不做校验
func AuthMiddleware(conf configs.AuthConfig, sessions *auth.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !conf.Enabled {
			setPrincipal(c, &auth.Principal{Username: "anonymous"})
			c.Next()

			return
		}

		if isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		if token := SessionToken(c, conf.CookieName); token != "" && sessions != nil {
			p, err := sessions.Resolve(c.Request.Context(), token)
			if err == nil {
				setPrincipal(c, p)
				c.Next()

				return
			}
		}

		if conf.TrustProxy {
			for _, h := range proxyUserHeaders {
				if user := strings.TrimSpace(c.GetHeader(h)); user != "" {
					setPrincipal(c, &auth.Principal{Username: user})
					c.Next()

					return
				}
			}
		}

		if conf.DevAllowQuery {
			if user := strings.TrimSpace(c.Query("user")); user != "" {
				setPrincipal(c, &auth.Principal{Username: user})
				c.Next()

				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
	}
}

// SessionToken 从 Authorization 头或 cookie 中取会话令牌.
func SessionToken(c *gin.Context, cookieName string) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if cookieName == "" {
		return ""
	}

	token, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}

	return token
}

// GetPrincipal 返回当前请求的用户，未认证时为 nil.
func GetPrincipal(c *gin.Context) *auth.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*auth.Principal); ok {
			return p
		}
	}

	return nil
}

func setPrincipal(c *gin.Context, p *auth.Principal) {
	c.Set(principalKey, p)
	c.Request = c.Request.WithContext(ctxPkg.WithActor(c.Request.Context(), p.Username))
}

func isSkippedPath(path string, skips []string) bool {
	if path == "" || len(skips) == 0 {
		return false
	}

	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p != "/" {
			p = strings.TrimSuffix(p, "/")
		}

		if p == "" {
			continue
		}

		// 按路径段匹配，/metrics 不覆盖 /metricsfoo.
		if path == p || p == "/" || strings.HasPrefix(path, p+"/") {
			return true
		}
	}

	return false
}
