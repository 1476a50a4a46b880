// Package auth 实现登录校验与基于 KV 的会话.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yeisme/carevault/pkg/cache"
	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/ids"
	"github.com/yeisme/carevault/pkg/internal/storage/kv"
)

var (
	// ErrInvalidCredentials 用户名或口令错误.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrNoSession 会话不存在或已过期.
	ErrNoSession = errors.New("auth: no session")
)

// Credentials 登录表单.
type Credentials struct {
	Username string
	Password string
}

// Principal 已认证的主体.
type Principal struct {
	Username string    `json:"username"`
	LoginAt  time.Time `json:"login_at"`
}

// Authenticator 校验登录凭据.
type Authenticator interface {
	Authenticate(ctx context.Context, c Credentials) (*Principal, error)
}

// StaticAuthenticator 校验配置中的单个共享账号.
type StaticAuthenticator struct {
	username string
	hash     []byte
	password []byte
}

// NewStaticAuthenticator 从配置创建校验器，PasswordHash（bcrypt）优先于明文 Password.
func NewStaticAuthenticator(cfg configs.AuthConfig) (*StaticAuthenticator, error) {
	a := &StaticAuthenticator{username: cfg.Username}

	switch {
	case cfg.PasswordHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("auth: password_hash is not a bcrypt hash: %w", err)
		}

		a.hash = []byte(cfg.PasswordHash)
	case cfg.Password != "":
		a.password = []byte(cfg.Password)
	default:
		return nil, errors.New("auth: neither password_hash nor password is configured")
	}

	return a, nil
}

// Authenticate 实现 Authenticator.
func (a *StaticAuthenticator) Authenticate(_ context.Context, c Credentials) (*Principal, error) {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(c.Username)), []byte(a.username)) == 1

	var passOK bool
	if a.hash != nil {
		passOK = bcrypt.CompareHashAndPassword(a.hash, []byte(c.Password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(c.Password), a.password) == 1
	}

	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}

	return &Principal{Username: a.username, LoginAt: time.Now().UTC()}, nil
}

// DenyAuthenticator 拒绝所有登录，认证关闭时使用.
type DenyAuthenticator struct{}

// Authenticate 实现 Authenticator.
func (DenyAuthenticator) Authenticate(context.Context, Credentials) (*Principal, error) {
	return nil, ErrInvalidCredentials
}

// NewAuthenticator 按配置选择校验器. 认证关闭时不要求配置口令.
func NewAuthenticator(cfg configs.AuthConfig) (Authenticator, error) {
	if !cfg.Enabled {
		return DenyAuthenticator{}, nil
	}

	a, err := NewStaticAuthenticator(cfg)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// HashPassword 生成 bcrypt 哈希，供 CLI 写配置使用.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(h), nil
}

// Sessions 把会话令牌映射到 Principal，保存在 KV 中并带 TTL.
type Sessions struct {
	auth  Authenticator
	cache *cache.Cache
	ttl   time.Duration
}

// NewSessions 创建会话管理.
func NewSessions(a Authenticator, store kv.KVStore, ttl time.Duration) *Sessions {
	return &Sessions{auth: a, cache: cache.New(store, "session"), ttl: ttl}
}

// TTL 会话有效期.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Login 校验凭据并签发令牌.
func (s *Sessions) Login(ctx context.Context, c Credentials) (string, *Principal, error) {
	p, err := s.auth.Authenticate(ctx, c)
	if err != nil {
		return "", nil, err
	}

	token, err := ids.Secret()
	if err != nil {
		return "", nil, fmt.Errorf("auth: issue token: %w", err)
	}

	if err := cache.Set(ctx, s.cache, token, p, s.ttl); err != nil {
		return "", nil, fmt.Errorf("auth: store session: %w", err)
	}

	return token, p, nil
}

// Resolve 返回令牌对应的主体.
func (s *Sessions) Resolve(ctx context.Context, token string) (*Principal, error) {
	if !ids.Valid(token) {
		return nil, ErrNoSession
	}

	p, err := cache.Get[Principal](ctx, s.cache, token)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrNoSession
	}

	if err != nil {
		return nil, err
	}

	return &p, nil
}

// Logout 删除会话，令牌不存在时也视为成功.
func (s *Sessions) Logout(ctx context.Context, token string) error {
	if !ids.Valid(token) {
		return nil
	}

	return s.cache.Delete(ctx, token)
}
