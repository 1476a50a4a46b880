package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/internal/model"
	"github.com/yeisme/carevault/pkg/internal/storage/db"
)

func TestRegisteredTypes(t *testing.T) {
	types := db.GetRegisteredDBTypes()

	assert.Contains(t, types, configs.SQLite)
	assert.Contains(t, types, configs.PostgreSQL)
	assert.Contains(t, types, configs.Pg)
	assert.Contains(t, types, configs.MySQL)
}

func TestNewSQLiteAndMigrate(t *testing.T) {
	cfg := configs.Default().DB
	cfg.Database = filepath.Join(t.TempDir(), "records")
	cfg.LogLevel = "silent"

	client, err := db.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Migrate(context.Background()))
	require.NoError(t, client.HealthCheck(context.Background()))

	rec := &model.Record{PatientID: 7, PatientName: "Ada"}
	require.NoError(t, client.Create(rec).Error)
	assert.NotZero(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestNewUnsupportedType(t *testing.T) {
	cfg := configs.Default().DB
	cfg.Type = "oracle"

	_, err := db.New(context.Background(), cfg)
	assert.Error(t, err)
}
