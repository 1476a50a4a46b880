package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMaxUploadMB   = 32 // 单个文档上限
	DefaultStatsCacheTTL = 30 * time.Second
)

// IngestConfig 文档上传与提取配置.
type IngestConfig struct {
	MaxUploadMB   int64         `mapstructure:"max_upload_mb"   rule:"min=1,max=1024"`
	KeyPrefix     string        `mapstructure:"key_prefix"      rule:"required"` // 原始文档在 blob 中的前缀
	StatsCacheTTL time.Duration `mapstructure:"stats_cache_ttl"`
}

// MaxUploadBytes 返回允许的最大上传字节数.
func (c *IngestConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func (c *IngestConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("ingest.max_upload_mb", DefaultMaxUploadMB)
	v.SetDefault("ingest.key_prefix", "records")
	v.SetDefault("ingest.stats_cache_ttl", DefaultStatsCacheTTL)
}
