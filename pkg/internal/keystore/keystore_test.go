package keystore_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/crypt"
	"github.com/yeisme/carevault/pkg/internal/keystore"
	"github.com/yeisme/carevault/pkg/internal/storage/kv"
)

const text = "Diagnosis: stable\nFollow-up in 2 weeks"

func TestInlineRoundTripKeepsWireFormat(t *testing.T) {
	ctx := context.Background()

	v, err := keystore.New(configs.VaultConfig{KeyCustody: configs.KeyCustodyInline}, nil)
	require.NoError(t, err)
	assert.Equal(t, configs.KeyCustodyInline, v.Custody())

	payload, err := v.Seal(ctx, text)
	require.NoError(t, err)

	// 与直接使用 crypt 编码的格式一致
	p, err := crypt.ParsePayload(payload)
	require.NoError(t, err)
	assert.Len(t, p.Key, crypt.KeySize)

	got, err := p.Open()
	require.NoError(t, err)
	assert.Equal(t, text, got)

	got, err = v.Open(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestKVCustody(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV()

	v, err := keystore.New(configs.VaultConfig{KeyCustody: configs.KeyCustodyKV, KeyPrefix: "vault:key:"}, store)
	require.NoError(t, err)

	payload, err := v.Seal(ctx, text)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(payload, "kv."))

	keys, err := store.Keys(ctx, "vault:key:*")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	got, err := v.Open(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, text, got)

	require.NoError(t, v.Discard(ctx, payload))

	_, err = v.Open(ctx, payload)
	assert.ErrorIs(t, err, keystore.ErrKeyUnavailable)
}

func TestVaultOpensBothCustodies(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV()

	inline, err := keystore.New(configs.VaultConfig{KeyCustody: configs.KeyCustodyInline, KeyPrefix: "k:"}, store)
	require.NoError(t, err)
	external, err := keystore.New(configs.VaultConfig{KeyCustody: configs.KeyCustodyKV, KeyPrefix: "k:"}, store)
	require.NoError(t, err)

	a, err := inline.Seal(ctx, "a")
	require.NoError(t, err)
	b, err := external.Seal(ctx, "b")
	require.NoError(t, err)

	got, err := external.Open(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	got, err = inline.Open(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	v, err := keystore.New(configs.VaultConfig{}, nil)
	require.NoError(t, err)

	_, err = v.Open(ctx, "no-separator")
	require.ErrorIs(t, err, crypt.ErrDecode)

	_, err = v.Open(ctx, "!!!:AAAA")
	require.ErrorIs(t, err, crypt.ErrDecode)

	_, err = v.Open(ctx, "kv.01J00000000000000000000000:AAAA")
	require.ErrorIs(t, err, keystore.ErrKeyUnavailable)

	payload, err := v.Seal(ctx, text)
	require.NoError(t, err)

	// 换一把密钥：填充校验失败或得到不同明文
	seg, sealed, err := crypt.SplitPayload(payload)
	require.NoError(t, err)

	other, err := crypt.GenerateKey()
	require.NoError(t, err)
	require.NotEqual(t, seg, base64.StdEncoding.EncodeToString(other))

	got, err := v.Open(ctx, base64.StdEncoding.EncodeToString(other)+":"+sealed)
	if err == nil {
		assert.NotEqual(t, text, got)
	} else {
		assert.ErrorIs(t, err, crypt.ErrPadding)
	}
}

func TestNewRejectsMisconfiguration(t *testing.T) {
	_, err := keystore.New(configs.VaultConfig{KeyCustody: configs.KeyCustodyKV}, nil)
	assert.Error(t, err)

	_, err = keystore.New(configs.VaultConfig{KeyCustody: "hsm"}, kv.NewMemoryKV())
	assert.Error(t, err)
}
