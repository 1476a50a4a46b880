// Package blob 保存上传的原始病历文档.
//
// 后端通过工厂注册，按 configs.BlobConfig.Type 选择：
//   - local: 本地目录（afero），默认
//   - s3: MinIO / S3 兼容存储
//
// 键是以 '/' 分隔的相对路径，例如 records/42/01J.../visit.docx.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/yeisme/carevault/pkg/configs"
)

var (
	// ErrNotFound 对象不存在.
	ErrNotFound = errors.New("blob: object not found")
	// ErrInvalidKey 键为空、是绝对路径或包含 ..
	ErrInvalidKey = errors.New("blob: invalid key")
)

// ObjectInfo 对象元信息.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store 原始文档存储.
type Store interface {
	// Put 写入对象，size 未知时传 -1.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)
	// Open 打开对象读取，调用方负责关闭.
	Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	// Stat 返回对象元信息.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// Delete 删除对象，对象不存在时不报错.
	Delete(ctx context.Context, key string) error
	// List 列出前缀下的全部对象.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// HealthCheck 检查后端可用.
	HealthCheck(ctx context.Context) error
	// Close 释放资源.
	Close() error
}

// Factory 创建 Store 的工厂函数.
type Factory func(ctx context.Context, cfg configs.BlobConfig) (Store, error)

var factories = map[configs.BlobType]Factory{}

// RegisterFactory 注册后端工厂.
func RegisterFactory(t configs.BlobType, f Factory) {
	factories[t] = f
}

// GetRegisteredBlobTypes 返回已注册的后端类型（已排序）.
func GetRegisteredBlobTypes() []configs.BlobType {
	types := make([]configs.BlobType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 包装具体后端.
type Client struct {
	Store

	Type configs.BlobType
}

// New 按配置创建 blob 客户端.
func New(ctx context.Context, cfg configs.BlobConfig) (*Client, error) {
	f, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported blob type: %s", cfg.Type)
	}

	s, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init blob (%s): %w", cfg.Type, err)
	}

	return &Client{Store: s, Type: cfg.Type}, nil
}

// CleanKey 校验并规范化对象键.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}

	cleaned := path.Clean(key)
	if cleaned == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return cleaned, nil
}

// SanitizeName 把用户提供的文件名变成可安全放进键里的一段.
// 去掉目录部分，替换控制字符与分隔符，保留扩展名.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))

	var b strings.Builder

	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			continue
		case strings.ContainsRune(`/:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Trim(b.String(), " .")
	if out == "" {
		return "document"
	}

	const maxName = 200
	if len(out) > maxName {
		ext := path.Ext(out)
		if len(ext) >= maxName {
			ext = ""
		}

		out = strings.ToValidUTF8(out[:maxName-len(ext)], "") + ext
	}

	return out
}
