package configs

import "github.com/spf13/viper"

// KeyCustody 内容密钥的保管方式.
type KeyCustody string

const (
	// KeyCustodyInline 密钥以 base64 形式与密文同存一列，兼容旧数据格式.
	KeyCustodyInline KeyCustody = "inline"
	// KeyCustodyKV 密钥存放在 KV 中，密文列只保留引用.
	KeyCustodyKV KeyCustody = "kv"
)

// VaultConfig 病历内容加密配置.
type VaultConfig struct {
	KeyCustody KeyCustody `mapstructure:"key_custody" rule:"oneof=inline kv"`
	KeyPrefix  string     `mapstructure:"key_prefix"  rule:"required"` // kv 托管时的键前缀
}

func (c *VaultConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("vault.key_custody", KeyCustodyInline)
	v.SetDefault("vault.key_prefix", "vault:key:")
}
