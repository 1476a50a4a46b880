package handle

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/carevault/pkg/internal/auth"
	"github.com/yeisme/carevault/pkg/internal/service"
	"github.com/yeisme/carevault/pkg/internal/types"
	"github.com/yeisme/carevault/pkg/middleware"
)

// Login 校验账号并签发会话，同时写入 HttpOnly cookie.
//
//	POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req types.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	if req.Name() == "" || req.Password == "" {
		respondError(c, fmt.Errorf("%w: username and password are required", service.ErrValidation))
		return
	}

	token, p, err := h.sessions.Login(c.Request.Context(), auth.Credentials{Username: req.Name(), Password: req.Password})
	if err != nil {
		respondError(c, err)
		return
	}

	h.setCookie(c, token, int(h.sessions.TTL().Seconds()))

	ok(c, http.StatusOK, "login successful", gin.H{
		"token":      token,
		"user":       p,
		"expires_in": int(h.sessions.TTL().Seconds()),
	})
}

// Logout 注销当前会话.
//
//	POST /api/v1/auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	if token := middleware.SessionToken(c, h.authCfg.CookieName); token != "" {
		if err := h.sessions.Logout(c.Request.Context(), token); err != nil {
			respondError(c, err)
			return
		}
	}

	h.setCookie(c, "", -1)

	ok(c, http.StatusOK, "logged out", nil)
}

// Me 返回当前用户.
//
//	GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	if p == nil {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	ok(c, http.StatusOK, "authenticated", gin.H{"user": p})
}

func (h *Handlers) setCookie(c *gin.Context, value string, maxAge int) {
	if h.authCfg.CookieName == "" {
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.authCfg.CookieName, value, maxAge, "/", "", c.Request.TLS != nil, true)
}
