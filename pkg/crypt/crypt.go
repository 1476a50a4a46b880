// Package crypt 提供病历正文的对称加密：AES-256-CBC，PKCS#7 填充，每次加密使用新的随机 IV.
//
// Example:
//
//	key, _ := crypt.GenerateKey()
//	iv, ct, err := crypt.Encrypt(key, "Diagnosis: stable")
//	text, err := crypt.Decrypt(key, iv, ct)
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize AES-256 密钥长度.
	KeySize = 32
	// BlockSize AES 分组长度，也是 IV 长度.
	BlockSize = aes.BlockSize
)

var (
	// ErrKeySize 密钥长度不是 32 字节.
	ErrKeySize = errors.New("crypt: key must be 32 bytes")
	// ErrDecode 密文的传输编码或长度不合法.
	ErrDecode = errors.New("crypt: malformed ciphertext")
	// ErrPadding 解密后的 PKCS#7 填充不合法，通常意味着密钥错误或密文被篡改.
	ErrPadding = errors.New("crypt: invalid padding")
)

// random 随机源，测试中可替换.
var random io.Reader = rand.Reader

// GenerateKey 生成 32 字节的随机密钥.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(random, key); err != nil {
		return nil, fmt.Errorf("crypt: generate key: %w", err)
	}

	return key, nil
}

// Encrypt 用 AES-256-CBC 加密 UTF-8 文本，返回随机 IV 与密文.
func Encrypt(key []byte, plaintext string) (iv, ciphertext []byte, err error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, nil, err
	}

	iv = make([]byte, BlockSize)
	if _, err := io.ReadFull(random, iv); err != nil {
		return nil, nil, fmt.Errorf("crypt: generate iv: %w", err)
	}

	padded := Pad([]byte(plaintext), BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return iv, ciphertext, nil
}

// Decrypt 解密 Encrypt 的输出并去除填充.
func Decrypt(key, iv, ciphertext []byte) (string, error) {
	block, err := newBlock(key)
	if err != nil {
		return "", err
	}

	if len(iv) != BlockSize {
		return "", fmt.Errorf("%w: iv is %d bytes", ErrDecode, len(iv))
	}

	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d", ErrDecode, len(ciphertext))
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	out, err := Unpad(plain, BlockSize)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

func newBlock(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}

	return aes.NewCipher(key)
}

// Pad 按 PKCS#7 填充到 blockSize 的整数倍，输入恰好对齐时追加一个完整分组.
func Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)

	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}

	return out
}

// Unpad 校验并去除 PKCS#7 填充.
func Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrPadding
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrPadding
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrPadding
		}
	}

	return data[:len(data)-n], nil
}
