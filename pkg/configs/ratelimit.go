package configs

import "github.com/spf13/viper"

const (
	DefaultRateLimitEnabled = false
	DefaultRateLimitRPS     = 50.0
	DefaultRateLimitBurst   = 100
	DefaultRateLimitKey     = "ip"
)

// RateLimitConfig 令牌桶限流.
//
// Key 选择限流维度: global、ip、user（登录用户）或 header:Header-Name.
// UploadRPS 大于 0 时，POST /records 额外使用一个更严格的桶，上传需要解包、提取与加密.
type RateLimitConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	RPS         float64 `mapstructure:"rps"          rule:"gt=0"`
	Burst       int     `mapstructure:"burst"        rule:"min=1"`
	Key         string  `mapstructure:"key"          rule:"required"`
	UploadRPS   float64 `mapstructure:"upload_rps"   rule:"min=0"`
	UploadBurst int     `mapstructure:"upload_burst" rule:"min=0"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", DefaultRateLimitEnabled)
	v.SetDefault("rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)
	v.SetDefault("rate_limit.key", DefaultRateLimitKey)
	v.SetDefault("rate_limit.upload_rps", 2.0)
	v.SetDefault("rate_limit.upload_burst", 5)
}
