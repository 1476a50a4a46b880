package handle

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/carevault/pkg/context"
)

const timeout = 2 * time.Second

var errNotInitialized = errors.New("client not initialized")

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func health(c *gin.Context, component string, hc healthChecker, present bool) {
	if !present {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "component": component, "status": "unhealthy", "message": errNotInitialized.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := hc.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "component": component, "status": "unhealthy", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "component": component, "status": "ok", "message": "ok"})
}

// HealthDB 数据库健康检查.
func HealthDB(c *gin.Context) {
	dbc := ctxPkg.GetDBClient(c.Request.Context())
	health(c, "db", dbc, dbc != nil)
}

// HealthBlob 原始文档存储健康检查.
func HealthBlob(c *gin.Context) {
	bc := ctxPkg.GetBlobClient(c.Request.Context())
	health(c, "blob", bc, bc != nil)
}

// HealthKV KV 健康检查.
func HealthKV(c *gin.Context) {
	kc := ctxPkg.GetKVClient(c.Request.Context())
	health(c, "kv", kc, kc != nil)
}

// HealthMQ 消息队列健康检查.
func HealthMQ(c *gin.Context) {
	mqc := ctxPkg.GetMQClient(c.Request.Context())
	health(c, "mq", mqc, mqc != nil)
}

// Health 汇总所有组件，任一异常时返回 503.
func Health(c *gin.Context) {
	mgr := ctxPkg.GetManager(c.Request.Context())
	if mgr == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "storage manager not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	status, code := gin.H{}, http.StatusOK

	for name, err := range mgr.Health(ctx) {
		if err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable

			continue
		}

		status[name] = "ok"
	}

	c.JSON(code, gin.H{"success": code == http.StatusOK, "message": http.StatusText(code), "components": status})
}
