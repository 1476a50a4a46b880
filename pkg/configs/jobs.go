package configs

import (
	"time"

	"github.com/spf13/viper"
)

// JobsConfig 后台定时任务配置.
type JobsConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	PayloadAuditCron string        `mapstructure:"payload_audit_cron"` // 密文完整性巡检
	AuditBatchSize   int           `mapstructure:"audit_batch_size"   rule:"min=1,max=10000"`
	OrphanSweepCron  string        `mapstructure:"orphan_sweep_cron"` // 清理无主原始文档
	OrphanGrace      time.Duration `mapstructure:"orphan_grace"`      // 小于该年龄的文件不清理，避免与上传竞争
}

func (c *JobsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.payload_audit_cron", "20 3 * * *")
	v.SetDefault("jobs.audit_batch_size", 200)
	v.SetDefault("jobs.orphan_sweep_cron", "40 3 * * 0")
	v.SetDefault("jobs.orphan_grace", "24h")
}
