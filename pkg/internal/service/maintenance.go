package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yeisme/carevault/pkg/internal/model"
	"github.com/yeisme/carevault/pkg/metrics"
	"github.com/yeisme/carevault/pkg/queue"
)

// maxFailingIDs 审计结果中最多列出的失败记录数.
const maxFailingIDs = 100

// AuditPayloads 分批解密全部加密正文，统计无法还原的记录.
func (s *RecordService) AuditPayloads(ctx context.Context, batchSize int) (*queue.PayloadAuditPayload, error) {
	if batchSize <= 0 {
		batchSize = 200
	}

	res := &queue.PayloadAuditPayload{}

	var lastID uint

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var batch []model.Record

		err := s.dbClient.WithContext(ctx).
			Where("id > ? AND encrypted_payload <> ''", lastID).
			Order("id ASC").
			Limit(batchSize).
			Find(&batch).Error
		if err != nil {
			return res, fmt.Errorf("load audit batch: %w", err)
		}

		for i := range batch {
			res.Checked++

			if _, err := s.DecryptRecord(ctx, &batch[i]); err != nil {
				res.Failed++

				if len(res.Failing) < maxFailingIDs {
					res.Failing = append(res.Failing, int(batch[i].ID))
				}
			}
		}

		if len(batch) < batchSize {
			break
		}

		lastID = batch[len(batch)-1].ID
	}

	metrics.PayloadAuditFailures.Set(float64(res.Failed))

	s.publishAudit(ctx, res)

	return res, nil
}

func (s *RecordService) publishAudit(ctx context.Context, res *queue.PayloadAuditPayload) {
	if s.mqClient == nil || !s.events.Enabled {
		return
	}

	msg, err := queue.NewWatermillMessage(queue.TopicAuditPayloadCompleted, *res)
	if err == nil {
		err = s.mqClient.Publish(ctx, queue.TopicAuditPayloadCompleted, msg)
	}

	if err != nil {
		l := s.log(ctx)
		l.Warn().Err(err).Msg("failed to publish payload audit result")
	}
}

// SweepOrphans 删除前缀下没有病历引用且早于 grace 的原始文档，返回删除数量.
func (s *RecordService) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	prefix := strings.TrimSuffix(s.ingest.KeyPrefix, "/") + "/"

	objects, err := s.blobStore.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	if len(objects) == 0 {
		return 0, nil
	}

	var paths []string
	if err := s.dbClient.WithContext(ctx).
		Model(&model.Record{}).
		Where("file_path <> ''").
		Pluck("file_path", &paths).Error; err != nil {
		return 0, fmt.Errorf("load referenced documents: %w", err)
	}

	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}

	cutoff := time.Now().Add(-grace)
	removed := 0
	l := s.log(ctx)

	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok || obj.LastModified.After(cutoff) {
			continue
		}

		if err := s.blobStore.Delete(ctx, obj.Key); err != nil {
			l.Warn().Err(err).Str("key", obj.Key).Msg("failed to remove orphan document")

			continue
		}

		removed++
	}

	metrics.OrphanBlobsRemoved.Add(float64(removed))

	if removed > 0 {
		l.Info().Int("removed", removed).Dur("grace", grace).Msg("orphan documents removed")
	}

	return removed, nil
}
