package handle

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/carevault/pkg/internal/service"
	"github.com/yeisme/carevault/pkg/internal/types"
	"github.com/yeisme/carevault/pkg/rule"
)

// 表单之外的 multipart 开销.
const formOverhead = 1 << 20

// documentFields 文档字段名，document 为主，file 兼容旧表单.
var documentFields = []string{"document", "file"}

// UploadRecord 登记病历，可附带 .docx / .pptx 文档.
//
//	@Summary		登记病历
//	@Description	提取文档文本后以 AES-256-CBC 加密保存，原始文档写入对象存储
//	@Tags			病历
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			patient_id		formData	string	true	"患者编号"
//	@Param			patient_name	formData	string	true	"患者姓名"
//	@Param			department		formData	string	false	"科室"
//	@Param			comments		formData	string	false	"备注"
//	@Param			document		formData	file	false	".docx 或 .pptx"
//	@Success		201				{object}	map[string]any
//	@Failure		400				{object}	map[string]any
//	@Failure		415				{object}	map[string]any
//	@Failure		422				{object}	map[string]any
//	@Router			/api/v1/records [post]
func (h *Handlers) UploadRecord(c *gin.Context) {
	if limit := h.ingest.MaxUploadBytes(); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)
	}

	var req types.UploadRecordRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	doc, err := h.readDocument(c)
	if err != nil {
		respondError(c, err)
		return
	}

	rec, err := h.records.Ingest(c.Request.Context(), service.IngestInput{
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		Department:  req.Department,
		Comments:    req.Comments,
		Document:    doc,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	msg := "patient record added"
	if doc != nil {
		msg = "patient and encrypted document added"
	}

	ok(c, http.StatusCreated, msg, gin.H{"record": types.NewRecordView(rec)})
}

// readDocument 读取上传的文档，没有文档时返回 nil.
func (h *Handlers) readDocument(c *gin.Context) (*service.Upload, error) {
	var (
		fh  *multipart.FileHeader
		err error
	)

	for _, field := range documentFields {
		fh, err = c.FormFile(field)
		if err == nil {
			break
		}
	}

	if fh == nil || (fh.Filename == "" && fh.Size == 0) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}

		return nil, nil
	}

	if limit := h.ingest.MaxUploadBytes(); limit > 0 && fh.Size > limit {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", service.ErrValidation, limit)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	return &service.Upload{Name: fh.Filename, Blob: data}, nil
}

// SearchRecord 按患者姓名查找.
//
//	@Summary	按姓名查找病历
//	@Tags		病历
//	@Produce	json
//	@Param		name	query		string	true	"患者姓名"
//	@Success	200		{object}	map[string]any
//	@Failure	404		{object}	map[string]any
//	@Router		/api/v1/records/search [get]
func (h *Handlers) SearchRecord(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		name = c.Query("search")
	}

	rec, err := h.records.SearchByName(c.Request.Context(), name)
	if errors.Is(err, service.ErrNotFound) {
		fail(c, http.StatusNotFound, "patient not found")
		return
	}

	if err != nil {
		respondError(c, err)
		return
	}

	ok(c, http.StatusOK, "patient found", gin.H{"record": types.NewRecordView(rec)})
}

// ReceiveRecord 接收方核对病历.
//
//	@Summary	接收核对
//	@Tags		病历
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.ReceiveRequest	true	"核对信息"
//	@Success	200		{object}	map[string]any
//	@Router		/api/v1/records/receive [post]
func (h *Handlers) ReceiveRecord(c *gin.Context) {
	var req types.ReceiveRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	res, rec, err := h.records.Receive(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"success": res.Matched && res.Department, "message": res.Message, "result": res}
	if rec != nil && res.Department {
		body["record"] = types.NewRecordView(rec)
	}

	c.JSON(http.StatusOK, body)
}

// GetRecord 返回病历元数据.
//
//	@Summary	病历详情
//	@Tags		病历
//	@Produce	json
//	@Param		patient_id	path		string	true	"患者编号"
//	@Success	200			{object}	map[string]any
//	@Failure	404			{object}	map[string]any
//	@Router		/api/v1/records/{patient_id} [get]
func (h *Handlers) GetRecord(c *gin.Context) {
	rec, err := h.records.View(c.Request.Context(), c.Param("patient_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	ok(c, http.StatusOK, "record found", gin.H{"record": types.NewRecordView(rec)})
}

// DownloadDocument 原样返回上传的文档.
//
//	@Summary	下载原始文档
//	@Tags		病历
//	@Produce	octet-stream
//	@Param		patient_id	path	string	true	"患者编号"
//	@Success	200
//	@Failure	404	{object}	map[string]any
//	@Router		/api/v1/records/{patient_id}/download [get]
func (h *Handlers) DownloadDocument(c *gin.Context) {
	rc, rec, info, err := h.records.OpenDocument(c.Request.Context(), c.Param("patient_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	contentType := rec.ContentType
	if contentType == "" {
		contentType = info.ContentType
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	headers := map[string]string{
		"Content-Disposition":    mime.FormatMediaType("attachment", map[string]string{"filename": rec.DocumentName}),
		"X-Content-Type-Options": "nosniff",
	}

	if rec.Checksum != "" {
		headers["X-Checksum-XXH64"] = rec.Checksum
	}

	c.DataFromReader(http.StatusOK, info.Size, contentType, rc, headers)
}

// RecordText 返回解密后的文档文本.
//
//	@Summary	解密文档文本
//	@Tags		病历
//	@Produce	json
//	@Param		patient_id	path		string	true	"患者编号"
//	@Success	200			{object}	map[string]any
//	@Failure	404			{object}	map[string]any
//	@Failure	422			{object}	map[string]any
//	@Router		/api/v1/records/{patient_id}/text [get]
func (h *Handlers) RecordText(c *gin.Context) {
	rec, text, err := h.records.ReadText(c.Request.Context(), c.Param("patient_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	ok(c, http.StatusOK, "document decrypted", gin.H{"record": types.NewRecordView(rec), "text": text})
}

// ListLogs 列出操作日志.
//
//	GET /api/v1/logs?patient_id=&limit=&offset=
func (h *Handlers) ListLogs(c *gin.Context) {
	var q types.ListLogsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, bindError(err))
		return
	}

	if err := rule.ValidateStruct(&q); err != nil {
		respondError(c, bindError(err))
		return
	}

	page, err := h.records.ListActionLogs(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	ok(c, http.StatusOK, strconv.FormatInt(page.Total, 10)+" log entries", gin.H{"items": page.Items, "total": page.Total})
}

// DepartmentStats 按科室统计.
//
//	GET /api/v1/stats/departments
func (h *Handlers) DepartmentStats(c *gin.Context) {
	stats, err := h.records.DepartmentStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	ok(c, http.StatusOK, "department statistics", gin.H{"departments": stats})
}

func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}

	return fmt.Errorf("%w: %v", service.ErrValidation, rule.Explain(err))
}
