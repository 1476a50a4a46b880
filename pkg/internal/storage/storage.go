// Package storage 聚合病历系统使用的全部存储资源：关系库、原始文档、KV 与消息队列.
//
//	mgr, err := storage.New(ctx, &cfg)
//	if err != nil {
//		// 处理错误
//	}
//	defer mgr.Close()
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/internal/storage/blob"
	dbc "github.com/yeisme/carevault/pkg/internal/storage/db"
	kvc "github.com/yeisme/carevault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/carevault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/carevault/pkg/log"
	"github.com/yeisme/carevault/pkg/metrics"
)

// Manager 聚合所有存储资源.
type Manager struct {
	DB   *dbc.Client
	Blob *blob.Client
	KV   *kvc.Client
	MQ   *mqc.Client
}

// New 按配置依次初始化各存储，任一失败时关闭已打开的资源.
func New(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	m := &Manager{}

	fail := func(err error) (*Manager, error) {
		return nil, errors.Join(err, m.Close())
	}

	var err error

	if m.DB, err = dbc.New(ctx, cfg.DB, dbc.WithMetrics(cfg.Metrics.Enabled)); err != nil {
		return fail(fmt.Errorf("db: %w", err))
	}

	if err := m.DB.Migrate(ctx); err != nil {
		return fail(err)
	}

	if m.Blob, err = blob.New(ctx, cfg.Blob); err != nil {
		return fail(fmt.Errorf("blob: %w", err))
	}

	if m.KV, err = kvc.NewKVClient(ctx, cfg.KV); err != nil {
		return fail(fmt.Errorf("kv: %w", err))
	}

	var mqOpts []mqc.Option
	if cfg.Metrics.Enabled && cfg.MQ.Common.EnableMetrics {
		mqOpts = append(mqOpts, mqc.WithMetrics(metrics.Registerer()))
	}

	if m.MQ, err = mqc.New(ctx, cfg.MQ, mqOpts...); err != nil {
		return fail(fmt.Errorf("mq: %w", err))
	}

	nlog.Logger().Info().
		Str("db", string(cfg.DB.Type)).
		Str("blob", string(cfg.Blob.Type)).
		Str("kv", cfg.KV.Type).
		Str("mq", string(cfg.MQ.Type)).
		Msg("storage manager initialized")

	return m, nil
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client { return m.DB }

// GetBlobClient 获取原始文档存储.
func (m *Manager) GetBlobClient() *blob.Client { return m.Blob }

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client { return m.KV }

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client { return m.MQ }

// Health 返回各存储的健康检查结果，nil 表示正常.
func (m *Manager) Health(ctx context.Context) map[string]error {
	out := map[string]error{}

	if m.DB != nil {
		out["db"] = m.DB.HealthCheck(ctx)
	}

	if m.Blob != nil {
		out["blob"] = m.Blob.HealthCheck(ctx)
	}

	if m.KV != nil {
		out["kv"] = m.KV.HealthCheck(ctx)
	}

	if m.MQ != nil {
		out["mq"] = m.MQ.HealthCheck(ctx)
	}

	return out
}

// Close 逆序关闭已打开的资源.
func (m *Manager) Close() error {
	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.Blob != nil {
		errs = append(errs, m.Blob.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}
