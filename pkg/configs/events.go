package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分主题）。
type EventsConfig struct {
	Enabled  bool               `mapstructure:"enabled"` // 总开关
	Record   RecordEventsConfig `mapstructure:"record"`
	Consumer bool               `mapstructure:"consumer"` // 启动内置审计消费者
}

// RecordEventsConfig 针对病历领域的事件开关。
type RecordEventsConfig struct {
	Uploaded   bool `mapstructure:"uploaded"`
	Downloaded bool `mapstructure:"downloaded"`
	Decrypted  bool `mapstructure:"decrypted"`
	Received   bool `mapstructure:"received"`
	Searched   bool `mapstructure:"searched"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)
	v.SetDefault("events.consumer", true)

	// 涉及病历内容的访问默认全部记录
	v.SetDefault("events.record.uploaded", true)
	v.SetDefault("events.record.downloaded", true)
	v.SetDefault("events.record.decrypted", true)
	v.SetDefault("events.record.received", true)
	v.SetDefault("events.record.searched", false) // 查询量可能很大，默认关闭
}
