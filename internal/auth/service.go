package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// 认证子系统返回的通用错误。
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Subject 是通过认证的调用方。
type Subject struct {
	// KeyID 是 API Key 摘要的前缀，可安全写入日志。
	KeyID string
}

// Service 使用静态 API Key 校验请求。未配置任何 Key 时认证关闭。
type Service struct {
	keys [][]byte
}

// NewService 根据给定的 API Key 创建认证服务，空白项会被忽略。
func NewService(keys []string) *Service {
	s := &Service{}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		s.keys = append(s.keys, []byte(key))
	}
	return s
}

// Enabled 返回是否启用了认证。
func (s *Service) Enabled() bool {
	return s != nil && len(s.keys) > 0
}

// AuthenticateRequest 解析 Authorization 头并校验 Bearer Token。
func (s *Service) AuthenticateRequest(_ context.Context, header string) (*Subject, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	candidate := []byte(strings.TrimSpace(token))

	matched := false
	for _, key := range s.keys {
		if subtle.ConstantTimeCompare(candidate, key) == 1 {
			matched = true
		}
	}
	if !matched {
		return nil, ErrInvalidToken
	}
	sum := sha256.Sum256(candidate)
	return &Subject{KeyID: hex.EncodeToString(sum[:4])}, nil
}
