// Package types 定义 HTTP 请求与响应结构.
package types

import (
	"time"

	"github.com/yeisme/carevault/pkg/internal/model"
)

// UploadRecordRequest 病历上传表单，文档字段 document 或 file 二选一，可以不传.
type UploadRecordRequest struct {
	PatientID   string `form:"patient_id"`
	PatientName string `form:"patient_name"`
	Department  string `form:"department"`
	Comments    string `form:"comments"`
}

// ReceiveRequest 接收方核对病历.
type ReceiveRequest struct {
	PatientID   string `form:"patient_id"   json:"patient_id"`
	PatientName string `form:"patient_name" json:"patient_name"`
	Department  string `form:"department"   json:"department"`
	Feedback    string `form:"feedback"     json:"feedback"`
}

// ReceiveResult 核对结果.
type ReceiveResult struct {
	Matched      bool   `json:"matched"`      // 编号与姓名一致
	Department   bool   `json:"department"`   // 科室也一致
	Downloadable bool   `json:"downloadable"` // 有可下载的原始文档
	Message      string `json:"message"`
}

// RecordView 对外展示的病历，不含密文.
type RecordView struct {
	ID           uint      `json:"id"`
	PatientID    int64     `json:"patient_id"`
	PatientName  string    `json:"patient_name"`
	Department   string    `json:"department"`
	Comments     string    `json:"comments"`
	DocumentName string    `json:"document_name,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	Size         int64     `json:"size,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	HasDocument  bool      `json:"has_document"`
	Encrypted    bool      `json:"encrypted"`
	KeyCustody   string    `json:"key_custody,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewRecordView 转换为展示结构.
func NewRecordView(r *model.Record) RecordView {
	return RecordView{
		ID:           r.ID,
		PatientID:    r.PatientID,
		PatientName:  r.PatientName,
		Department:   r.Department,
		Comments:     r.Comments,
		DocumentName: r.DocumentName,
		ContentType:  r.ContentType,
		Size:         r.Size,
		Checksum:     r.Checksum,
		HasDocument:  r.HasDocument(),
		Encrypted:    r.HasPayload(),
		KeyCustody:   r.KeyCustody,
		CreatedAt:    r.CreatedAt,
	}
}

// ListLogsQuery 操作日志查询参数.
type ListLogsQuery struct {
	PatientID string `form:"patient_id" rule:"omitempty,patient_id"`
	Limit     int    `form:"limit"      rule:"omitempty,min=1,max=500"`
	Offset    int    `form:"offset"     rule:"omitempty,min=0"`
}

// ActionLogPage 操作日志分页结果.
type ActionLogPage struct {
	Items []model.ActionLog `json:"items"`
	Total int64             `json:"total"`
}

// DepartmentCount 按科室统计的病历数.
type DepartmentCount struct {
	Department string `json:"department"`
	Records    int64  `json:"records"`
	Documents  int64  `json:"documents"` // 附带原始文档的数量
}

// LoginRequest 登录请求，兼容旧表单字段 uname.
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	UName    string `form:"uname"    json:"uname"`
	Password string `form:"password" json:"password"`
}

// Name 返回实际使用的用户名.
func (r *LoginRequest) Name() string {
	if r.Username != "" {
		return r.Username
	}

	return r.UName
}
