package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/carevault/pkg/configs"
	nlog "github.com/yeisme/carevault/pkg/log"
)

// S3Store MinIO / S3 兼容存储，所有对象位于一个 bucket 中.
type S3Store struct {
	cli    *minio.Client
	bucket string
}

func newS3Factory(ctx context.Context, cfg configs.BlobConfig) (Store, error) {
	return NewS3Store(ctx, cfg.S3)
}

func init() {
	RegisterFactory(configs.BlobTypeS3, newS3Factory)
}

// NewS3Store 初始化 MinIO 客户端，bucket 不存在时创建.
func NewS3Store(ctx context.Context, cfg configs.S3Config) (*S3Store, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("s3 bucket_name is required")
	}

	endpoint := cfg.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			cfg.UseSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo(configs.AppName, configs.AppVersion)

	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}

	if !exists {
		if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}

		nlog.Logger().Info().Str("bucket", cfg.BucketName).Msg("bucket created")
	}

	nlog.Logger().Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.BucketName).Msg("s3 connected")

	return &S3Store{cli: cli, bucket: cfg.BucketName}, nil
}

// Put 上传对象.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}

	info, err := s.cli.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}

	return &ObjectInfo{Key: key, Size: info.Size, ContentType: contentType, LastModified: info.LastModified}, nil
}

// Open 读取对象，先 Stat 以便对象不存在时直接返回 ErrNotFound.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	info, err := s.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	obj, err := s.cli.GetObject(ctx, s.bucket, info.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, mapS3Err(info.Key, err)
	}

	return obj, info, nil
}

// Stat 返回对象元信息.
func (s *S3Store) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}

	st, err := s.cli.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapS3Err(key, err)
	}

	return &ObjectInfo{Key: key, Size: st.Size, ContentType: st.ContentType, LastModified: st.LastModified}, nil
}

// Delete 删除对象，S3 对不存在的键删除本就成功.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	if err := s.cli.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapS3Err(key, err)
	}

	return nil
}

// List 递归列出前缀下的对象.
func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if prefix != "" {
		p, err := CleanKey(prefix)
		if err != nil {
			return nil, err
		}

		prefix = p
	}

	var out []ObjectInfo

	for obj := range s.cli.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, obj.Err)
		}

		out = append(out, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}

	return out, nil
}

// HealthCheck 确认 bucket 可访问.
func (s *S3Store) HealthCheck(ctx context.Context) error {
	ok, err := s.cli.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}

	return nil
}

// Close 无实际操作.
func (s *S3Store) Close() error { return nil }

func mapS3Err(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return fmt.Errorf("s3 %s: %w", key, err)
}
