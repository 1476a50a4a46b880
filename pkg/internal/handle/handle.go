// Package handle 提供 HTTP 请求处理器的实现.
package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/crypt"
	"github.com/yeisme/carevault/pkg/extract"
	"github.com/yeisme/carevault/pkg/internal/auth"
	"github.com/yeisme/carevault/pkg/internal/service"
	"github.com/yeisme/carevault/pkg/log"
)

// Handlers 病历与认证相关的处理器.
type Handlers struct {
	records  *service.RecordService
	sessions *auth.Sessions
	authCfg  configs.AuthConfig
	ingest   configs.IngestConfig
}

// New 创建处理器集合.
func New(records *service.RecordService, sessions *auth.Sessions, authCfg configs.AuthConfig, ingest configs.IngestConfig) *Handlers {
	return &Handlers{records: records, sessions: sessions, authCfg: authCfg, ingest: ingest}
}

// DefaultHandler 未实现的路由.
func DefaultHandler(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"success": false, "message": "not implemented"})
}

// ok 写入成功响应，extra 中的字段合并到顶层.
func ok(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}

	c.JSON(status, body)
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// statusOf 把错误映射为 HTTP 状态码.
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrInvalidDocument),
		errors.Is(err, crypt.ErrDecode),
		errors.Is(err, crypt.ErrPadding):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrNoDocument):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// respondError 按错误类型返回响应，5xx 不向客户端暴露内部信息.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)

	if status >= http.StatusInternalServerError {
		l := log.Logger()
		l.Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
		fail(c, status, "internal server error")

		return
	}

	fail(c, status, err.Error())
}
