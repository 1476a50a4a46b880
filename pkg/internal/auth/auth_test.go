package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/internal/auth"
	"github.com/yeisme/carevault/pkg/internal/storage/kv"
)

func TestStaticAuthenticatorPlain(t *testing.T) {
	a, err := auth.NewStaticAuthenticator(configs.AuthConfig{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	p, err := a.Authenticate(context.Background(), auth.Credentials{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Username)

	_, err = a.Authenticate(context.Background(), auth.Credentials{Username: "admin", Password: "wrong"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = a.Authenticate(context.Background(), auth.Credentials{Username: "root", Password: "s3cret"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestStaticAuthenticatorBcrypt(t *testing.T) {
	hash, err := auth.HashPassword("pa55")
	require.NoError(t, err)

	a, err := auth.NewStaticAuthenticator(configs.AuthConfig{Username: "doc", PasswordHash: hash, Password: "ignored"})
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), auth.Credentials{Username: "doc", Password: "pa55"})
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), auth.Credentials{Username: "doc", Password: "ignored"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestStaticAuthenticatorConfigErrors(t *testing.T) {
	_, err := auth.NewStaticAuthenticator(configs.AuthConfig{Username: "admin"})
	assert.Error(t, err)

	_, err = auth.NewStaticAuthenticator(configs.AuthConfig{Username: "admin", PasswordHash: "plain"})
	assert.Error(t, err)
}

func TestNewAuthenticatorDisabled(t *testing.T) {
	a, err := auth.NewAuthenticator(configs.AuthConfig{Enabled: false, Username: "admin"})
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), auth.Credentials{Username: "admin", Password: ""})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = auth.NewAuthenticator(configs.AuthConfig{Enabled: true, Username: "admin"})
	assert.Error(t, err)
}

func TestSessionsLifecycle(t *testing.T) {
	ctx := context.Background()

	a, err := auth.NewStaticAuthenticator(configs.AuthConfig{Username: "admin", Password: "pw"})
	require.NoError(t, err)

	s := auth.NewSessions(a, kv.NewMemoryKV(), time.Hour)

	_, _, err = s.Login(ctx, auth.Credentials{Username: "admin", Password: "bad"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	token, p, err := s.Login(ctx, auth.Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "admin", p.Username)

	got, err := s.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)

	require.NoError(t, s.Logout(ctx, token))

	_, err = s.Resolve(ctx, token)
	require.ErrorIs(t, err, auth.ErrNoSession)

	_, err = s.Resolve(ctx, "garbage")
	require.ErrorIs(t, err, auth.ErrNoSession)
}

func TestSessionsExpire(t *testing.T) {
	ctx := context.Background()

	a, err := auth.NewStaticAuthenticator(configs.AuthConfig{Username: "admin", Password: "pw"})
	require.NoError(t, err)

	s := auth.NewSessions(a, kv.NewMemoryKV(), 20*time.Millisecond)

	token, _, err := s.Login(ctx, auth.Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	_, err = s.Resolve(ctx, token)
	assert.ErrorIs(t, err, auth.ErrNoSession)
}
