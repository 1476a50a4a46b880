// Package model 定义持久化到关系库的病历与操作日志模型.
package model

import (
	"time"
)

// Record 病历记录，创建后不再修改.
type Record struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// 外部系统给出的患者编号，不唯一，查询时取最早的一条
	PatientID   int64  `gorm:"index;not null"   json:"patient_id"`
	PatientName string `gorm:"size:255;index;not null" json:"patient_name"`
	Department  string `gorm:"size:50;index"    json:"department"`
	Comments    string `gorm:"type:text"        json:"comments"`
	// 原始文档在 blob 存储中的键，未上传文档时为空
	FilePath     string `gorm:"size:1024"        json:"file_path"`
	DocumentName string `gorm:"size:255"         json:"document_name"`
	ContentType  string `gorm:"size:255"         json:"content_type"`
	Size         int64  `json:"size"`
	Checksum     string `gorm:"size:32"          json:"checksum"` // xxhash64 十六进制
	// 密钥段:base64(iv‖密文)，不出现在 JSON 中
	EncryptedPayload string    `gorm:"type:text"                json:"-"`
	KeyCustody       string    `gorm:"size:16"                  json:"key_custody,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime;<-:create" json:"created_at"`
}

// HasDocument 是否附带了原始文档.
func (r *Record) HasDocument() bool {
	return r.FilePath != ""
}

// HasPayload 是否存有加密正文.
func (r *Record) HasPayload() bool {
	return r.EncryptedPayload != ""
}

// Action 操作日志的动作类型.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionDecrypt  Action = "decrypt"
	ActionReceive  Action = "receive"
	ActionSearch   Action = "search"
	ActionView     Action = "view"
)

// ActionLog 只追加的操作日志.
type ActionLog struct {
	ID        uint      `gorm:"primaryKey"            json:"id"`
	PatientID int64     `gorm:"index"                 json:"patient_id"`
	Action    Action    `gorm:"size:255;index"        json:"action"`
	Actor     string    `gorm:"size:255"              json:"actor"`
	Detail    string    `gorm:"size:512"              json:"detail,omitempty"`
	Date      time.Time `gorm:"autoCreateTime;index"  json:"date"`
}

// All 返回需要迁移的全部模型.
func All() []any {
	return []any{&Record{}, &ActionLog{}}
}
