// Package keystore 决定内容密钥如何随密文保存.
//
// 载荷格式固定为 "<密钥段>:<base64(iv‖密文)>"，密钥段由 Custody 生成：
//   - inline: 密钥段就是 base64(key)，与历史数据一致
//   - kv: 密钥段是 "kv.<ulid>" 引用，密钥本身保存在 KV 中
//
// Open 按密钥段的形态识别托管方式，两种数据可以在同一张表里共存.
package keystore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/crypt"
	"github.com/yeisme/carevault/pkg/ids"
	"github.com/yeisme/carevault/pkg/internal/storage/kv"
)

// refPrefix kv 托管的密钥段前缀，'.' 不在标准 base64 字母表中.
const refPrefix = "kv."

// ErrKeyUnavailable 密钥引用在 KV 中找不到.
var ErrKeyUnavailable = errors.New("keystore: key unavailable")

// Custody 包装与还原内容密钥.
type Custody interface {
	// Wrap 返回写入载荷的密钥段.
	Wrap(ctx context.Context, key []byte) (string, error)
	// Unwrap 由密钥段还原密钥.
	Unwrap(ctx context.Context, segment string) ([]byte, error)
	// Name 托管方式名称，写入 Record.KeyCustody.
	Name() configs.KeyCustody
}

// Inline 密钥以 base64 形式内联在载荷中.
type Inline struct{}

// Wrap 实现 Custody.
func (Inline) Wrap(_ context.Context, key []byte) (string, error) {
	return base64.StdEncoding.EncodeToString(key), nil
}

// Unwrap 实现 Custody.
func (Inline) Unwrap(_ context.Context, segment string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: key segment: %v", crypt.ErrDecode, err)
	}

	return key, nil
}

// Name 实现 Custody.
func (Inline) Name() configs.KeyCustody { return configs.KeyCustodyInline }

// KV 密钥保存在 KV 存储中.
type KV struct {
	store  kv.KVStore
	prefix string
}

// NewKV 创建 kv 托管，prefix 为 KV 键前缀.
func NewKV(store kv.KVStore, prefix string) *KV {
	return &KV{store: store, prefix: prefix}
}

// Wrap 以新的 ULID 保存密钥.
func (k *KV) Wrap(ctx context.Context, key []byte) (string, error) {
	id := ids.NewString()
	if err := k.store.Set(ctx, k.prefix+id, key, 0); err != nil {
		return "", fmt.Errorf("store key %s: %w", id, err)
	}

	return refPrefix + id, nil
}

// Unwrap 读取引用指向的密钥.
func (k *KV) Unwrap(ctx context.Context, segment string) ([]byte, error) {
	id, ok := strings.CutPrefix(segment, refPrefix)
	if !ok || !ids.Valid(id) {
		return nil, fmt.Errorf("%w: bad key reference %q", crypt.ErrDecode, segment)
	}

	key, err := k.store.Get(ctx, k.prefix+id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrKeyUnavailable, id)
	}

	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", id, err)
	}

	return key, nil
}

// Name 实现 Custody.
func (k *KV) Name() configs.KeyCustody { return configs.KeyCustodyKV }

// Vault 用选定的托管方式加密，并能打开任一托管方式写出的载荷.
type Vault struct {
	write  Custody
	inline Inline
	kv     *KV
}

// New 按配置创建 Vault. store 为空时只能使用 inline.
func New(cfg configs.VaultConfig, store kv.KVStore) (*Vault, error) {
	v := &Vault{write: Inline{}}

	if store != nil {
		v.kv = NewKV(store, cfg.KeyPrefix)
	}

	switch cfg.KeyCustody {
	case configs.KeyCustodyInline, "":
	case configs.KeyCustodyKV:
		if v.kv == nil {
			return nil, errors.New("keystore: kv custody requires a KV store")
		}

		v.write = v.kv
	default:
		return nil, fmt.Errorf("keystore: unknown custody %q", cfg.KeyCustody)
	}

	return v, nil
}

// Custody 返回写入时使用的托管方式.
func (v *Vault) Custody() configs.KeyCustody {
	return v.write.Name()
}

// Seal 生成新密钥加密 plaintext，返回存储格式的载荷.
func (v *Vault) Seal(ctx context.Context, plaintext string) (string, error) {
	p, err := crypt.Seal(plaintext)
	if err != nil {
		return "", err
	}

	segment, err := v.write.Wrap(ctx, p.Key)
	if err != nil {
		return "", err
	}

	return segment + ":" + crypt.EncodeSealed(p.IV, p.Ciphertext), nil
}

// Open 解析并解密载荷.
func (v *Vault) Open(ctx context.Context, payload string) (string, error) {
	segment, sealed, err := crypt.SplitPayload(payload)
	if err != nil {
		return "", err
	}

	var custody Custody = v.inline

	if strings.HasPrefix(segment, refPrefix) {
		if v.kv == nil {
			return "", fmt.Errorf("%w: kv custody not configured", ErrKeyUnavailable)
		}

		custody = v.kv
	}

	key, err := custody.Unwrap(ctx, segment)
	if err != nil {
		return "", err
	}

	iv, ct, err := crypt.DecodeSealed(sealed)
	if err != nil {
		return "", err
	}

	return crypt.Decrypt(key, iv, ct)
}

// Discard 删除 kv 托管的密钥，inline 载荷无需处理.
func (v *Vault) Discard(ctx context.Context, payload string) error {
	segment, _, err := crypt.SplitPayload(payload)
	if err != nil {
		return err
	}

	id, ok := strings.CutPrefix(segment, refPrefix)
	if !ok || v.kv == nil {
		return nil
	}

	return v.kv.store.Delete(ctx, v.kv.prefix+id)
}
