package configs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/configs"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := configs.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, configs.SQLite, cfg.DB.Type)
	assert.Equal(t, configs.BlobTypeLocal, cfg.Blob.Type)
	assert.Equal(t, "uploads", cfg.Blob.Local.Root)
	assert.Equal(t, "memory", cfg.KV.Type)
	assert.Equal(t, configs.MQTypeMemory, cfg.MQ.Type)
	assert.Equal(t, configs.KeyCustodyInline, cfg.Vault.KeyCustody)
	assert.Equal(t, 8*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, int64(32<<20), cfg.Ingest.MaxUploadBytes())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9090
db:
  type: postgresql
  host: db.internal
vault:
  key_custody: kv
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	v, err := configs.Load(dir)
	require.NoError(t, err)

	var cfg configs.AppConfig
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, configs.PostgreSQL, cfg.DB.Type)
	assert.Equal(t, "PostgreSQL", cfg.DB.GetDBType())
	assert.Contains(t, cfg.DB.GetDSN(), "host=db.internal")
	assert.Equal(t, configs.KeyCustodyKV, cfg.Vault.KeyCustody)
	// 未覆盖的字段保持默认值
	assert.Equal(t, "records", cfg.Ingest.KeyPrefix)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	v, err := configs.Load(t.TempDir())
	require.NoError(t, err)

	var cfg configs.AppConfig
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, configs.DefaultPort, cfg.Server.Port)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CAREVAULT_SERVER_PORT", "7001")

	v, err := configs.Load(t.TempDir())
	require.NoError(t, err)

	var cfg configs.AppConfig
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, 7001, cfg.Server.Port)
}

func TestValidateRejectsUnknownCustody(t *testing.T) {
	cfg := configs.Default()
	cfg.Vault.KeyCustody = "hsm"

	assert.Error(t, cfg.Validate())
}
