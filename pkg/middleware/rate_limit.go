package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/carevault/pkg/configs"
)

const (
	limiterIdleTTL     = 10 * time.Minute
	limiterSweepPeriod = time.Minute
)

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// keyedLimiter 每个键一个令牌桶，闲置超过 limiterIdleTTL 的键在下次清扫时移除.
type keyedLimiter struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

func (k *keyedLimiter) allow(key string, now time.Time) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.lastSweep) > limiterSweepPeriod {
		for key, e := range k.entries {
			if now.Sub(e.seen) > limiterIdleTTL {
				delete(k.entries, key)
			}
		}

		k.lastSweep = now
	}

	e, ok := k.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(k.rps, k.burst)}
		k.entries[key] = e
	}

	e.seen = now

	return e.lim.AllowN(now, 1)
}

// RateLimitMiddleware 返回一个基于配置的限流中间件.
// key: global | ip | user | header:Name，user 需要放在认证中间件之后.
// 配置了 UploadRPS 时，上传病历的请求还要再通过一个独立的桶.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keyMode := strings.ToLower(strings.TrimSpace(cfg.Key))
	general := newBucket(cfg.RPS, cfg.Burst, keyMode)

	var upload func(*gin.Context) bool
	if cfg.UploadRPS > 0 {
		upload = newBucket(cfg.UploadRPS, max(cfg.UploadBurst, 1), keyMode)
	}

	return func(c *gin.Context) {
		if !general(c) {
			abortRateLimited(c)
			return
		}

		if upload != nil && isRecordUpload(c) && !upload(c) {
			abortRateLimited(c)
			return
		}

		c.Next()
	}
}

func newBucket(rps float64, burst int, keyMode string) func(*gin.Context) bool {
	if keyMode == "global" || keyMode == "" {
		limiter := rate.NewLimiter(rate.Limit(rps), burst)

		return func(*gin.Context) bool { return limiter.Allow() }
	}

	limiter := &keyedLimiter{rps: rate.Limit(rps), burst: burst, entries: map[string]*limiterEntry{}}

	return func(c *gin.Context) bool { return limiter.allow(limitKey(c, keyMode), time.Now()) }
}

func isRecordUpload(c *gin.Context) bool {
	return c.Request.Method == http.MethodPost && strings.HasSuffix(c.FullPath(), "/records")
}

func limitKey(c *gin.Context, mode string) string {
	var key string

	switch {
	case strings.HasPrefix(mode, "header:"):
		key = c.GetHeader(strings.TrimPrefix(mode, "header:"))
	case mode == "user":
		if p := GetPrincipal(c); p != nil {
			key = "user:" + p.Username
		}
	}

	if key == "" {
		key = clientIP(c)
	}

	if key == "" {
		key = "unknown"
	}

	return key
}

func abortRateLimited(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "rate limit exceeded, please try again later"})
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}

	return host
}
