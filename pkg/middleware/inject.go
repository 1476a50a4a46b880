package middleware

import (
	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/carevault/pkg/context"
	"github.com/yeisme/carevault/pkg/internal/storage"
	"github.com/yeisme/carevault/pkg/scheduler"
)

const schedulerKey = "carevault.scheduler"

// StorageMiddleware 把存储管理器挂到请求 context 上，健康检查从中取各客户端.
// manager 为 nil 时不注入，健康检查会报告组件未配置.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager != nil {
			c.Request = c.Request.WithContext(ctxPkg.WithStorageManager(c.Request.Context(), manager))
		}

		c.Next()
	}
}

// SchedulerMiddleware 把调度器挂到 gin.Context 上，供 /scheduler 路由使用.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sched != nil {
			c.Set(schedulerKey, sched)
		}

		c.Next()
	}
}

// GetScheduler 取出调度器，未注入时返回 nil.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	if v, ok := c.Get(schedulerKey); ok {
		if sched, ok := v.(*scheduler.Scheduler); ok {
			return sched
		}
	}

	return nil
}
