package crypt

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Payload 一条病历的加密载荷.
// 存储格式为 base64(key):base64(iv‖ciphertext)，均为带填充的标准 base64.
type Payload struct {
	Key        []byte
	IV         []byte
	Ciphertext []byte
}

// Seal 生成新密钥并加密 plaintext.
func Seal(plaintext string) (*Payload, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	iv, ct, err := Encrypt(key, plaintext)
	if err != nil {
		return nil, err
	}

	return &Payload{Key: key, IV: iv, Ciphertext: ct}, nil
}

// Open 解密载荷.
func (p *Payload) Open() (string, error) {
	return Decrypt(p.Key, p.IV, p.Ciphertext)
}

// Encode 序列化为存储格式.
func (p *Payload) Encode() string {
	return base64.StdEncoding.EncodeToString(p.Key) + ":" + EncodeSealed(p.IV, p.Ciphertext)
}

// ParsePayload 解析 Encode 的输出，密钥段按 base64 解码.
func ParsePayload(s string) (*Payload, error) {
	keySeg, sealed, err := SplitPayload(s)
	if err != nil {
		return nil, err
	}

	key, err := base64.StdEncoding.DecodeString(keySeg)
	if err != nil {
		return nil, fmt.Errorf("%w: key segment: %v", ErrDecode, err)
	}

	iv, ct, err := DecodeSealed(sealed)
	if err != nil {
		return nil, err
	}

	return &Payload{Key: key, IV: iv, Ciphertext: ct}, nil
}

// SplitPayload 在第一个 ':' 处切分出密钥段与密文段.
// 标准 base64 字母表不含 ':'，密文段中不会再出现分隔符.
func SplitPayload(s string) (keySegment, sealed string, err error) {
	keySegment, sealed, ok := strings.Cut(s, ":")
	if !ok || keySegment == "" || sealed == "" {
		return "", "", fmt.Errorf("%w: payload has no key separator", ErrDecode)
	}

	return keySegment, sealed, nil
}

// EncodeSealed 将 IV 与密文拼接后做 base64.
func EncodeSealed(iv, ciphertext []byte) string {
	buf := make([]byte, 0, len(iv)+len(ciphertext))
	buf = append(buf, iv...)
	buf = append(buf, ciphertext...)

	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeSealed 还原 EncodeSealed，前 16 字节为 IV.
func DecodeSealed(s string) (iv, ciphertext []byte, err error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if len(raw) < 2*BlockSize {
		return nil, nil, fmt.Errorf("%w: sealed payload is %d bytes", ErrDecode, len(raw))
	}

	return raw[:BlockSize], raw[BlockSize:], nil
}
