// Package configs 管理应用程序配置，包括数据库、对象存储、KV、队列与病历加密相关的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := configs.GetConfig()
//	fmt.Println(cfg.Server.Port)
//
// Example accessing DB config:
//
//	dsn := configs.GetConfig().DB.GetDSN()
//
// Example accessing Blob config:
//
//	blobCfg := configs.GetConfig().Blob
//	fmt.Println(blobCfg.Type, blobCfg.Local.Root)
//
// 组件构造函数只接收各自的配置段，只有 cmd 与 app 读取全局配置.
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/carevault/pkg/rule"
)

// AppName 应用名称.
const AppName = "carevault"

// AppVersion 应用版本，构建时可通过 -ldflags 覆盖.
var AppVersion = "0.1.0"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`          // 服务器端口、超时等
		DB             DBConfig             `mapstructure:"db"`              // 病历与操作日志所在的关系库
		Blob           BlobConfig           `mapstructure:"blob"`            // 原始文档存储
		KV             KVConfig             `mapstructure:"kv"`              // 会话、缓存、外部密钥
		MQ             MQConfig             `mapstructure:"mq"`              // 病历事件
		Log            LogConfig            `mapstructure:"log"`             // 日志
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // Prometheus
		Tracing        TracingConfig        `mapstructure:"tracing"`         // OpenTelemetry
		Auth           AuthConfig           `mapstructure:"auth"`            // 登录与会话
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // 限流
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // 熔断
		Events         EventsConfig         `mapstructure:"events"`          // 事件开关
		Vault          VaultConfig          `mapstructure:"vault"`           // 密钥托管
		Ingest         IngestConfig         `mapstructure:"ingest"`          // 上传与提取
		Jobs           JobsConfig           `mapstructure:"jobs"`            // 定时任务
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
	// configMu 保护热重载时的 globalConfig.
	configMu sync.RWMutex
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// 找不到配置文件时仅使用默认值与环境变量.
func InitConfig(path string) error {
	v, err := Load(path)
	if err != nil {
		return err
	}

	cfg := AppConfig{}
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	configMu.Lock()
	globalConfig = cfg
	appViper = v
	configMu.Unlock()

	reloadConfigs(v, cfg.Server.ReloadConfig)

	return nil
}

// Load 构建带默认值的 viper 实例并读取配置文件.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	setAllDefaults(v)

	if path == "" {
		path = "."
	}

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		for _, ext := range []string{"yaml", "yml", "json", "toml", "env", "dotenv"} {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	v.SetEnvPrefix("CAREVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return v, nil
}

// Default 返回仅包含默认值的配置，测试与 CLI 子命令可直接使用.
func Default() AppConfig {
	v := viper.New()
	setAllDefaults(v)

	cfg := AppConfig{}
	_ = v.Unmarshal(&cfg)

	return cfg
}

// Validate 按 rule 标签校验配置.
func (c *AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", rule.Explain(err))
	}

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var cfg AppConfig

	cfg.Server.setDefaults(v)
	cfg.DB.setDefaults(v)
	cfg.Blob.setDefaults(v)
	cfg.KV.setDefaults(v)
	cfg.MQ.setDefaults(v)
	cfg.Log.setDefaults(v)
	cfg.Metrics.setDefaults(v)
	cfg.Tracing.setDefaults(v)
	cfg.Auth.setDefaults(v)
	cfg.RateLimit.setDefaults(v)
	cfg.CircuitBreaker.setDefaults(v)
	cfg.Events.setDefaults(v)
	cfg.Vault.setDefaults(v)
	cfg.Ingest.setDefaults(v)
	cfg.Jobs.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Fprintln(os.Stderr, "config file changed:", e.Name)

		cfg := AppConfig{}
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error reloading config: %v\n", err)

			return
		}

		configMu.Lock()
		globalConfig = cfg
		configMu.Unlock()
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := globalConfig

	return &cfg
}

// GetViper 返回 InitConfig 创建的 viper 实例.
func GetViper() *viper.Viper {
	configMu.RLock()
	defer configMu.RUnlock()

	return appViper
}
