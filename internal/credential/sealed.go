package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"aliaskit/client/internal/domain"
)

const (
	sealedPrefix = "sealed:v1:"
	saltSize     = 16
	nonceSize    = 24
	keyInfo      = "aliaskit api key"
)

var (
	// ErrEmptySecret 加密口令为空
	ErrEmptySecret = errors.New("credential secret is empty")

	// ErrSealedValueInvalid 保存的密文无法解密（口令错误或数据损坏）
	ErrSealedValueInvalid = errors.New("failed to unseal stored api key")
)

// SealedProvider 在写入下层 Provider 前加密 API Key。
//
// 每次写入使用随机 salt 和 nonce，密钥由口令经 HKDF-SHA256 派生。
// 密文格式为 "sealed:v1:" + base64(salt | nonce | box)。
type SealedProvider struct {
	inner  Provider
	secret []byte
}

var _ Provider = (*SealedProvider)(nil)

// NewSealedProvider 包装 inner，secret 不能为空
func NewSealedProvider(inner Provider, secret string) (*SealedProvider, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptySecret
	}
	return &SealedProvider{inner: inner, secret: []byte(secret)}, nil
}

// Get 读取并解密
func (p *SealedProvider) Get(ctx context.Context) (domain.APIKey, error) {
	stored, err := p.inner.Get(ctx)
	if err != nil {
		return "", err
	}
	return p.open(string(stored))
}

// Set 加密后写入
func (p *SealedProvider) Set(ctx context.Context, key domain.APIKey) error {
	if key.Empty() {
		return ErrNoAPIKey
	}
	sealed, err := p.seal(key)
	if err != nil {
		return err
	}
	return p.inner.Set(ctx, domain.APIKey(sealed))
}

// Clear 清除
func (p *SealedProvider) Clear(ctx context.Context) error {
	return p.inner.Clear(ctx)
}

func (p *SealedProvider) seal(key domain.APIKey) (string, error) {
	buf := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	salt := buf[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], buf[saltSize:])

	box, err := p.derive(salt)
	if err != nil {
		return "", err
	}
	out := secretbox.Seal(buf, []byte(key), &nonce, box)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

func (p *SealedProvider) open(stored string) (domain.APIKey, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return "", ErrSealedValueInvalid
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(data) < saltSize+nonceSize+secretbox.Overhead {
		return "", ErrSealedValueInvalid
	}

	salt := data[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])

	box, err := p.derive(salt)
	if err != nil {
		return "", err
	}
	plain, ok := secretbox.Open(nil, data[saltSize+nonceSize:], &nonce, box)
	if !ok {
		return "", ErrSealedValueInvalid
	}
	return domain.APIKey(plain), nil
}

func (p *SealedProvider) derive(salt []byte) (*[32]byte, error) {
	var key [32]byte
	reader := hkdf.New(sha256.New, p.secret, salt, []byte(keyInfo))
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return &key, nil
}
