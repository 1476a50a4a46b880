package configs

import (
	"github.com/spf13/viper"
)

// LogFormat 控制台日志格式.
type LogFormat string

const (
	LogFormatConsole LogFormat = "console" // 便于本地阅读
	LogFormatJSON    LogFormat = "json"    // 交给日志采集器

	DefaultLogFormat     = LogFormatConsole
	DefaultLogEnableFile = true                 // 是否启用文件日志
	DefaultLogFilePath   = "logs/carevault.log" // 日志文件路径
	DefaultLogMaxSize    = 100                  // 日志文件最大尺寸（MB）
	DefaultLogMaxBackups = 7                    // 日志文件最大备份数量
	DefaultLogMaxAge     = 28                   // 日志文件最大保存天数
	DefaultLogCompress   = true                 // 是否启用日志文件压缩
	DefaultLogLevel      = "info"               // 日志级别
)

// LogConfig 日志相关配置. 文件输出始终为 JSON，Format 只影响 stderr.
type LogConfig struct {
	Level      string    `mapstructure:"level"        rule:"omitempty,oneof=trace debug info warn error"`
	Format     LogFormat `mapstructure:"format"       rule:"omitempty,oneof=console json"`
	EnableFile bool      `mapstructure:"enable_file"`
	FilePath   string    `mapstructure:"file_path"    rule:"required_if=EnableFile true"`
	MaxSize    int       `mapstructure:"max_size_mb"  rule:"min=0"`
	MaxBackups int       `mapstructure:"max_backups"  rule:"min=0"`
	MaxAge     int       `mapstructure:"max_age_days" rule:"min=0"`
	Compress   bool      `mapstructure:"compress"`
}

func (l *LogConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.enable_file", DefaultLogEnableFile)
	v.SetDefault("log.file_path", DefaultLogFilePath)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAge)
	v.SetDefault("log.compress", DefaultLogCompress)
}
