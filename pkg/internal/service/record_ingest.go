package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	ctxPkg "github.com/yeisme/carevault/pkg/context"
	"github.com/yeisme/carevault/pkg/extract"
	"github.com/yeisme/carevault/pkg/ids"
	"github.com/yeisme/carevault/pkg/internal/model"
	"github.com/yeisme/carevault/pkg/internal/storage/blob"
	"github.com/yeisme/carevault/pkg/metrics"
	"github.com/yeisme/carevault/pkg/rule"
	"github.com/yeisme/carevault/pkg/tracing"
)

// Upload 上传的文档.
type Upload struct {
	Name string
	Blob []byte
}

// IngestInput 病历入库参数.
type IngestInput struct {
	PatientID   string `rule:"required,patient_id"`
	PatientName string `rule:"required,max=255"`
	Department  string `rule:"department"`
	Comments    string
	Document    *Upload
}

// Ingest 校验、提取、加密并保存病历.
//
// 扩展名在任何加密操作之前检查. 写库失败时删除已写入的原始文档与 kv 托管的密钥.
func (s *RecordService) Ingest(ctx context.Context, in IngestInput) (*model.Record, error) {
	in.PatientID = strings.TrimSpace(in.PatientID)
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.Department = strings.TrimSpace(in.Department)

	format := "none"
	if in.Document != nil {
		format = extract.ExtOf(in.Document.Name)
	}

	ctx, span := tracing.StartSpan(ctx, "record.ingest", trace.WithAttributes(attribute.String("record.format", format)))
	rec, err := s.ingestRecord(ctx, in, format)
	tracing.End(span, err)

	metrics.IngestTotal.WithLabelValues(formatLabel(format), ingestResult(err)).Inc()

	return rec, err
}

func (s *RecordService) ingestRecord(ctx context.Context, in IngestInput, format string) (*model.Record, error) {
	if err := rule.ValidateStruct(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, rule.Explain(err))
	}

	pid, err := strconv.ParseInt(in.PatientID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: patient id %q is not an integer", ErrValidation, in.PatientID)
	}

	rec := &model.Record{
		PatientID:   pid,
		PatientName: in.PatientName,
		Department:  in.Department,
		Comments:    in.Comments,
	}

	if in.Document != nil {
		if err := s.attach(ctx, rec, in.Document, format); err != nil {
			return nil, err
		}
	}

	actor := ctxPkg.Actor(ctx)

	err = s.dbClient.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		return tx.Create(&model.ActionLog{
			PatientID: pid,
			Action:    model.ActionUpload,
			Actor:     actor,
			Detail:    rec.DocumentName,
		}).Error
	})
	if err != nil {
		s.compensate(ctx, rec)

		return nil, fmt.Errorf("save record: %w", err)
	}

	l := s.log(ctx)
	l.Info().
		Uint("record_id", rec.ID).
		Int64("patient_id", pid).
		Str("format", format).
		Str("custody", rec.KeyCustody).
		Msg("record ingested")

	s.publish(ctx, rec, model.ActionUpload, rec.DocumentName)
	s.invalidateStats(ctx)

	return rec, nil
}

// attach 处理文档：提取文本、加密、写入 blob，并填充 rec 的文档字段.
func (s *RecordService) attach(ctx context.Context, rec *model.Record, doc *Upload, format string) error {
	if !s.extractors.Supports(format) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Name)
	}

	if limit := s.ingest.MaxUploadBytes(); limit > 0 && int64(len(doc.Blob)) > limit {
		return fmt.Errorf("%w: document exceeds %d bytes", ErrValidation, limit)
	}

	start := time.Now()
	text, err := s.extractors.Extract(ctx, doc.Blob, format)
	metrics.ExtractDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())

	if err != nil {
		return fmt.Errorf("extract %s: %w", format, err)
	}

	payload, err := s.vault.Seal(ctx, text)
	if err != nil {
		return fmt.Errorf("encrypt document: %w", err)
	}

	name := blob.SanitizeName(doc.Name)
	key := path.Join(s.ingest.KeyPrefix, strconv.FormatInt(rec.PatientID, 10), ids.NewString(), name)
	contentType := mimetype.Detect(doc.Blob).String()

	info, err := s.blobStore.Put(ctx, key, bytes.NewReader(doc.Blob), int64(len(doc.Blob)), contentType)
	if err != nil {
		s.discardKey(ctx, payload)

		return fmt.Errorf("store document: %w", err)
	}

	rec.FilePath = info.Key
	rec.DocumentName = name
	rec.ContentType = contentType
	rec.Size = int64(len(doc.Blob))
	rec.Checksum = strconv.FormatUint(xxhash.Sum64(doc.Blob), 16)
	rec.EncryptedPayload = payload
	rec.KeyCustody = string(s.vault.Custody())

	return nil
}

// compensate 撤销 attach 的副作用.
func (s *RecordService) compensate(ctx context.Context, rec *model.Record) {
	// 入参 ctx 可能已取消，补偿使用独立的超时
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if rec.FilePath != "" {
		if err := s.blobStore.Delete(cctx, rec.FilePath); err != nil {
			l := s.log(ctx)
			l.Error().Err(err).Str("key", rec.FilePath).Msg("failed to remove document after insert failure")
		}
	}

	if rec.EncryptedPayload != "" {
		s.discardKey(cctx, rec.EncryptedPayload)
	}
}

func (s *RecordService) discardKey(ctx context.Context, payload string) {
	if err := s.vault.Discard(ctx, payload); err != nil {
		l := s.log(ctx)
		l.Warn().Err(err).Msg("failed to discard record key")
	}
}

func formatLabel(format string) string {
	if format == "" {
		return "unknown"
	}

	return format
}

func ingestResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported"
	case errors.Is(err, extract.ErrInvalidDocument):
		return "corrupt"
	default:
		return "error"
	}
}
