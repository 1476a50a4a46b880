// Package extract 从上传的 Office 文档中提取纯文本.
//
// 支持的格式由 Registry 决定，默认注册 .docx 与 .pptx：
//
//	text, err := extract.Default().Extract(ctx, blob, extract.ExtOf("visit.docx"))
//	if errors.Is(err, extract.ErrUnsupportedFormat) {
//		// 拒绝上传
//	}
//
// 提取是纯函数：同样的字节永远得到同样的文本.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnsupportedFormat 扩展名没有对应的提取器.
	ErrUnsupportedFormat = errors.New("extract: unsupported document format")
	// ErrInvalidDocument 文件不是合法的 OOXML 容器或缺少必需的部件.
	ErrInvalidDocument = errors.New("extract: invalid document")
)

// Extractor 某一类文档的文本提取器.
type Extractor interface {
	// Extract 返回文档的纯文本.
	Extract(ctx context.Context, blob []byte) (string, error)
	// SupportedFormats 返回支持的扩展名，带前导点且为小写.
	SupportedFormats() []string
}

// Registry 扩展名到提取器的映射，并发安全.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Extractor
}

// NewRegistry 创建注册表并注册给定的提取器.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}

	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default 返回注册了 docx 与 pptx 的共享注册表.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(NewDocx(), NewPptx())
	})

	return defaultRegistry
}

// Register 注册提取器，同名扩展名后注册者覆盖先注册者.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range e.SupportedFormats() {
		r.byExt[Normalize(ext)] = e
	}
}

// Lookup 按扩展名查找提取器.
func (r *Registry) Lookup(ext string) (Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byExt[Normalize(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	return e, nil
}

// Supports 判断扩展名是否受支持.
func (r *Registry) Supports(ext string) bool {
	_, err := r.Lookup(ext)

	return err == nil
}

// Formats 返回全部已注册扩展名（已排序）.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}

	sort.Strings(out)

	return out
}

// Extract 按声明的扩展名选择提取器并提取文本.
func (r *Registry) Extract(ctx context.Context, blob []byte, ext string) (string, error) {
	e, err := r.Lookup(ext)
	if err != nil {
		return "", err
	}

	return e.Extract(ctx, blob)
}

// Normalize 规范化扩展名：小写并带前导点.
func Normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}

	return "." + ext
}

// ExtOf 返回文件名的规范化扩展名，没有扩展名时返回空串.
func ExtOf(filename string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
}
