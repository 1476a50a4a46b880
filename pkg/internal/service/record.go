// Package service 实现病历的入库、检索与统计.
package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/yeisme/carevault/pkg/cache"
	"github.com/yeisme/carevault/pkg/configs"
	ctxPkg "github.com/yeisme/carevault/pkg/context"
	"github.com/yeisme/carevault/pkg/extract"
	"github.com/yeisme/carevault/pkg/internal/keystore"
	"github.com/yeisme/carevault/pkg/internal/storage/blob"
	"github.com/yeisme/carevault/pkg/internal/storage/db"
	"github.com/yeisme/carevault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/carevault/pkg/log"
)

var (
	// ErrValidation 患者编号或姓名不合法.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound 病历不存在.
	ErrNotFound = errors.New("record not found")
	// ErrNoDocument 病历没有附带文档或加密正文.
	ErrNoDocument = errors.New("record has no document")
	// ErrUnsupportedFormat 文档扩展名不是 .docx / .pptx.
	ErrUnsupportedFormat = extract.ErrUnsupportedFormat
)

// Deps RecordService 的依赖. MQ 可以为空，此时不发布事件.
type Deps struct {
	DB        *db.Client
	Blob      blob.Store
	Vault     *keystore.Vault
	Extractor *extract.Registry
	Stats     *cache.Cache
	MQ        *mq.Client
	Events    configs.EventsConfig
	Ingest    configs.IngestConfig
	Logger    *zerolog.Logger
}

// RecordService 病历业务.
type RecordService struct {
	dbClient   *db.Client
	blobStore  blob.Store
	vault      *keystore.Vault
	extractors *extract.Registry
	stats      *cache.Cache
	mqClient   *mq.Client
	events     configs.EventsConfig
	ingest     configs.IngestConfig
	logger     *zerolog.Logger
}

// NewRecordService 创建病历服务.
func NewRecordService(d Deps) *RecordService {
	if d.Extractor == nil {
		d.Extractor = extract.Default()
	}

	if d.Logger == nil {
		d.Logger = nlog.Logger()
	}

	if d.Ingest.KeyPrefix == "" {
		d.Ingest.KeyPrefix = "records"
	}

	return &RecordService{
		dbClient:   d.DB,
		blobStore:  d.Blob,
		vault:      d.Vault,
		extractors: d.Extractor,
		stats:      d.Stats,
		mqClient:   d.MQ,
		events:     d.Events,
		ingest:     d.Ingest,
		logger:     d.Logger,
	}
}

// KeyPrefix 原始文档在 blob 中的前缀.
func (s *RecordService) KeyPrefix() string {
	return s.ingest.KeyPrefix
}

// Custody 新写入记录使用的密钥托管方式.
func (s *RecordService) Custody() configs.KeyCustody {
	return s.vault.Custody()
}

func (s *RecordService) log(ctx context.Context) zerolog.Logger {
	return ctxPkg.WithTraceContext(ctx, s.logger.With().Str("component", "records").Logger())
}
