package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/ids"
)

// tmpMarker 写入过程中的临时文件名片段，List 会跳过.
const tmpMarker = ".cvtmp-"

// LocalStore 基于 afero 文件系统的存储，生产使用 OsFs，测试可用 MemMapFs.
type LocalStore struct {
	fs afero.Fs
}

// NewLocalStore 在给定文件系统上创建存储，文件系统的根即存储根目录.
func NewLocalStore(fsys afero.Fs) *LocalStore {
	return &LocalStore{fs: fsys}
}

func newLocalFactory(_ context.Context, cfg configs.BlobConfig) (Store, error) {
	root, err := filepath.Abs(cfg.Local.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}

	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}

	return NewLocalStore(afero.NewBasePathFs(osFs, root)), nil
}

func init() {
	RegisterFactory(configs.BlobTypeLocal, newLocalFactory)
}

// Put 先写临时文件再改名，读者不会看到写了一半的文件.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (*ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}

	if err := s.fs.MkdirAll(path.Dir(key), 0o750); err != nil {
		return nil, fmt.Errorf("create dir for %s: %w", key, err)
	}

	tmp := key + tmpMarker + ids.NewString()

	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", key, err)
	}

	n, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	closeErr := f.Close()

	if copyErr != nil || closeErr != nil {
		_ = s.fs.Remove(tmp)

		return nil, fmt.Errorf("write %s: %w", key, errors.Join(copyErr, closeErr))
	}

	if err := s.fs.Rename(tmp, key); err != nil {
		_ = s.fs.Remove(tmp)

		return nil, fmt.Errorf("commit %s: %w", key, err)
	}

	info, err := s.fs.Stat(key)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}

	return &ObjectInfo{Key: key, Size: n, ContentType: contentType, LastModified: info.ModTime()}, nil
}

// Open 打开对象.
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	info, err := s.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.fs.Open(info.Key)
	if err != nil {
		return nil, nil, mapFsErr(info.Key, err)
	}

	return f, info, nil
}

// Stat 返回对象元信息，内容类型按文件头嗅探.
func (s *LocalStore) Stat(_ context.Context, key string) (*ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}

	fi, err := s.fs.Stat(key)
	if err != nil {
		return nil, mapFsErr(key, err)
	}

	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, key)
	}

	info := &ObjectInfo{Key: key, Size: fi.Size(), LastModified: fi.ModTime()}

	if f, err := s.fs.Open(key); err == nil {
		if mt, err := mimetype.DetectReader(f); err == nil {
			info.ContentType = mt.String()
		}

		_ = f.Close()
	}

	return info, nil
}

// Delete 删除对象.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// List 递归列出前缀下的对象.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	root := "."

	if prefix != "" {
		p, err := CleanKey(prefix)
		if err != nil {
			return nil, err
		}

		prefix = p
		root = p

		if fi, err := s.fs.Stat(p); err != nil || !fi.IsDir() {
			root = path.Dir(p)
		}
	}

	var out []ObjectInfo

	err := afero.Walk(s.fs, root, func(p string, fi fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if fi.IsDir() || strings.Contains(fi.Name(), tmpMarker) {
			return nil
		}

		key := filepath.ToSlash(strings.TrimPrefix(p, string(filepath.Separator)))
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}

		out = append(out, ObjectInfo{Key: key, Size: fi.Size(), LastModified: fi.ModTime()})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}

	return out, nil
}

// HealthCheck 确认根目录可访问.
func (s *LocalStore) HealthCheck(_ context.Context) error {
	_, err := s.fs.Stat(".")

	return err
}

// Close 无需释放资源.
func (s *LocalStore) Close() error { return nil }

func mapFsErr(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return fmt.Errorf("blob %s: %w", key, err)
}

// ctxReader 在每次读取前检查 ctx，上传被取消时尽早停止写盘.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
