package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gorm.io/gorm"

	ctxPkg "github.com/yeisme/carevault/pkg/context"
	"github.com/yeisme/carevault/pkg/crypt"
	"github.com/yeisme/carevault/pkg/internal/keystore"
	"github.com/yeisme/carevault/pkg/internal/model"
	"github.com/yeisme/carevault/pkg/internal/storage/blob"
	"github.com/yeisme/carevault/pkg/internal/types"
	"github.com/yeisme/carevault/pkg/metrics"
	"github.com/yeisme/carevault/pkg/tracing"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// DecryptRecord 还原病历文档的提取文本.
func (s *RecordService) DecryptRecord(ctx context.Context, rec *model.Record) (string, error) {
	if rec == nil || !rec.HasPayload() {
		return "", ErrNoDocument
	}

	ctx, span := tracing.StartSpan(ctx, "record.decrypt")
	text, err := s.vault.Open(ctx, rec.EncryptedPayload)
	tracing.End(span, err)

	if err != nil {
		metrics.DecryptFailures.WithLabelValues(decryptReason(err)).Inc()

		return "", fmt.Errorf("decrypt record %d: %w", rec.ID, err)
	}

	return text, nil
}

// ReadText 按患者编号解密，并记录 decrypt 操作.
func (s *RecordService) ReadText(ctx context.Context, patientID string) (*model.Record, string, error) {
	rec, err := s.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, "", err
	}

	text, err := s.DecryptRecord(ctx, rec)
	if err != nil {
		return rec, "", err
	}

	s.record(ctx, rec, model.ActionDecrypt, "")

	return rec, text, nil
}

// FindByPatientID 返回该患者最早的一条病历.
func (s *RecordService) FindByPatientID(ctx context.Context, patientID string) (*model.Record, error) {
	pid, err := parsePatientID(patientID)
	if err != nil {
		return nil, err
	}

	var rec model.Record

	err = s.dbClient.WithContext(ctx).
		Where("patient_id = ?", pid).
		Order("id ASC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: patient %d", ErrNotFound, pid)
	}

	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}

	return &rec, nil
}

// View 返回病历元数据并记录 view 操作.
func (s *RecordService) View(ctx context.Context, patientID string) (*model.Record, error) {
	rec, err := s.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, rec, model.ActionView, "")

	return rec, nil
}

// SearchByName 按患者姓名精确查找第一条病历.
func (s *RecordService) SearchByName(ctx context.Context, name string) (*model.Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}

	var rec model.Record

	err := s.dbClient.WithContext(ctx).
		Where("patient_name = ?", name).
		Order("id ASC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: name %q", ErrNotFound, name)
	}

	if err != nil {
		return nil, fmt.Errorf("search record: %w", err)
	}

	s.record(ctx, &rec, model.ActionSearch, "")

	return &rec, nil
}

// Receive 接收方核对：编号与姓名匹配后再比对科室.
func (s *RecordService) Receive(ctx context.Context, req types.ReceiveRequest) (*types.ReceiveResult, *model.Record, error) {
	pid, err := parsePatientID(req.PatientID)
	if err != nil {
		return nil, nil, err
	}

	name := strings.TrimSpace(req.PatientName)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: patient name required", ErrValidation)
	}

	var rec model.Record

	err = s.dbClient.WithContext(ctx).
		Where("patient_id = ? AND patient_name = ?", pid, name).
		Order("id ASC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &types.ReceiveResult{Message: "no record for this patient"}, nil, nil
	}

	if err != nil {
		return nil, nil, fmt.Errorf("receive lookup: %w", err)
	}

	res := &types.ReceiveResult{Matched: true}

	if rec.Department != strings.TrimSpace(req.Department) {
		res.Message = "no data available for the patient from this department"

		return res, &rec, nil
	}

	res.Department = true
	res.Downloadable = rec.HasDocument()
	res.Message = "data found for the patient"

	detail := strings.TrimSpace(req.Feedback)
	if len(detail) > 512 {
		detail = detail[:512]
	}

	s.record(ctx, &rec, model.ActionReceive, strings.ToValidUTF8(detail, ""))

	return res, &rec, nil
}

// OpenDocument 打开病历的原始文档，调用方负责关闭.
func (s *RecordService) OpenDocument(ctx context.Context, patientID string) (io.ReadCloser, *model.Record, *blob.ObjectInfo, error) {
	rec, err := s.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, nil, nil, err
	}

	if !rec.HasDocument() {
		return nil, rec, nil, fmt.Errorf("%w: patient %d", ErrNoDocument, rec.PatientID)
	}

	rc, info, err := s.blobStore.Open(ctx, rec.FilePath)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, rec, nil, fmt.Errorf("%w: document of patient %d is missing", ErrNotFound, rec.PatientID)
	}

	if err != nil {
		return nil, rec, nil, fmt.Errorf("open document: %w", err)
	}

	s.record(ctx, rec, model.ActionDownload, rec.DocumentName)

	return rc, rec, info, nil
}

// ListActionLogs 按时间倒序列出操作日志，patientID 为空时不过滤.
func (s *RecordService) ListActionLogs(ctx context.Context, q types.ListLogsQuery) (*types.ActionLogPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}

	limit = min(limit, maxLogLimit)
	offset := max(q.Offset, 0)

	dbx := s.dbClient.WithContext(ctx).Model(&model.ActionLog{})

	if strings.TrimSpace(q.PatientID) != "" {
		pid, err := parsePatientID(q.PatientID)
		if err != nil {
			return nil, err
		}

		dbx = dbx.Where("patient_id = ?", pid)
	}

	dbx = dbx.Session(&gorm.Session{})

	var page types.ActionLogPage

	if err := dbx.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("count logs: %w", err)
	}

	if err := dbx.Order("id DESC").Limit(limit).Offset(offset).Find(&page.Items).Error; err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}

	return &page, nil
}

// record 追加操作日志并发布事件，失败只记日志.
func (s *RecordService) record(ctx context.Context, rec *model.Record, action model.Action, detail string) {
	entry := &model.ActionLog{
		PatientID: rec.PatientID,
		Action:    action,
		Actor:     ctxPkg.Actor(ctx),
		Detail:    detail,
	}

	if err := s.dbClient.WithContext(ctx).Create(entry).Error; err != nil {
		l := s.log(ctx)
		l.Error().Err(err).Str("action", string(action)).Int64("patient_id", rec.PatientID).Msg("failed to write action log")
	}

	s.publish(ctx, rec, action, detail)
}

func parsePatientID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: patient id required", ErrValidation)
	}

	pid, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: patient id %q is not an integer", ErrValidation, s)
	}

	return pid, nil
}

func decryptReason(err error) string {
	switch {
	case errors.Is(err, crypt.ErrPadding):
		return "padding"
	case errors.Is(err, crypt.ErrDecode):
		return "decode"
	case errors.Is(err, crypt.ErrKeySize):
		return "key_size"
	case errors.Is(err, keystore.ErrKeyUnavailable):
		return "key_unavailable"
	default:
		return "other"
	}
}
