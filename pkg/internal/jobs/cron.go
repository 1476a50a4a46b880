// Package jobs 注册病历相关的定时任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/internal/service"
	"github.com/yeisme/carevault/pkg/log"
	"github.com/yeisme/carevault/pkg/scheduler"
)

// RegisterCronJobs 按配置注册：
//   - vault.payload_audit: 逐条解密加密正文，统计无法还原的记录
//   - blob.orphan_sweep: 清理没有病历引用的原始文档
//
// cron 表达式为空的任务不注册.
func RegisterCronJobs(sched *scheduler.Scheduler, svc *service.RecordService, cfg configs.JobsConfig) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if svc == nil {
		return errors.New("record service is nil")
	}

	if !cfg.Enabled {
		return nil
	}

	if cfg.PayloadAuditCron != "" {
		if err := sched.AddCron(JobPayloadAudit, cfg.PayloadAuditCron, PayloadAudit(svc, cfg.AuditBatchSize)); err != nil {
			return err
		}
	}

	if cfg.OrphanSweepCron != "" {
		if err := sched.AddCron(JobOrphanSweep, cfg.OrphanSweepCron, OrphanSweep(svc, cfg)); err != nil {
			return err
		}
	}

	return nil
}

// PayloadAudit 返回密文巡检任务.
func PayloadAudit(svc *service.RecordService, batchSize int) scheduler.JobFunc {
	return func(ctx context.Context) error {
		l := log.Logger().With().Str("job", JobPayloadAudit).Logger()

		res, err := svc.AuditPayloads(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("payload audit: %w", err)
		}

		evt := l.Info()
		if res.Failed > 0 {
			evt = l.Warn().Ints("failing", res.Failing)
		}

		evt.Int("checked", res.Checked).Int("failed", res.Failed).Msg("payload audit done")

		return nil
	}
}

// OrphanSweep 返回无主文档清理任务.
func OrphanSweep(svc *service.RecordService, cfg configs.JobsConfig) scheduler.JobFunc {
	return func(ctx context.Context) error {
		l := log.Logger().With().Str("job", JobOrphanSweep).Logger()

		n, err := svc.SweepOrphans(ctx, cfg.OrphanGrace)
		if err != nil {
			return fmt.Errorf("orphan sweep: %w", err)
		}

		l.Info().Int("removed", n).Dur("grace", cfg.OrphanGrace).Msg("orphan sweep done")

		return nil
	}
}
