package configs

import (
	"time"

	"github.com/spf13/viper"
)

// AuthConfig 控制登录与会话校验.
// 会话令牌优先从 Authorization: Bearer 或 Cookie 读取，其次兼容 oauth2-proxy 注入的请求头.
type AuthConfig struct {
	Enabled       bool          `mapstructure:"enabled"`         // 开启认证校验
	SkipPaths     []string      `mapstructure:"skip_paths"`      // 跳过认证的路径前缀（如 /metrics、/api/v1/health）
	DevAllowQuery bool          `mapstructure:"dev_allow_query"` // 开发模式允许用 ?user= 便于本地调试
	TrustProxy    bool          `mapstructure:"trust_proxy"`     // 信任 X-Auth-Request-User 等代理头
	Username      string        `mapstructure:"username"`        // 共享账号
	Password      string        `mapstructure:"password"`        // 明文口令，仅用于本地开发
	PasswordHash  string        `mapstructure:"password_hash"`   // bcrypt 哈希，优先于 Password
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	CookieName    string        `mapstructure:"cookie_name"     rule:"required"`
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.dev_allow_query", false)
	v.SetDefault("auth.trust_proxy", false)
	v.SetDefault("auth.skip_paths", []string{
		"/metrics",
		"/debug/pprof",
		"/api/v1/health",
		"/api/v1/auth/login",
	})
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.session_ttl", "8h")
	v.SetDefault("auth.cookie_name", "carevault_session")
}
