// Package token 提供审核人员 JSON Web Token 的签发与验证。
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 审核角色：viewer 只能查看聚类，reviewer 可以合并或驳回。
const (
	RoleViewer   = "viewer"
	RoleReviewer = "reviewer"
)

// JWTManager 负责管理 JWT 的生成和验证。
type JWTManager struct {
	secretKey []byte
	tokenDur  time.Duration
}

// ReviewerClaims 是写入 token 的审核人员信息。
type ReviewerClaims struct {
	Reviewer string `json:"reviewer"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
func NewJWTManager(secret string, expireHours int) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secret),
		tokenDur:  time.Hour * time.Duration(expireHours),
	}
}

// GenerateToken 为审核人员签发 token。
func (m *JWTManager) GenerateToken(reviewer, role string) (string, error) {
	if reviewer == "" {
		return "", errors.New("reviewer 不能为空")
	}
	if role != RoleViewer && role != RoleReviewer {
		return "", fmt.Errorf("未知角色: %s", role)
	}
	now := time.Now()
	claims := ReviewerClaims{
		Reviewer: reviewer,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reviewer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secretKey)
}

// VerifyToken 验证给定的 token 字符串，成功时返回 claims。
func (m *JWTManager) VerifyToken(tokenString string) (*ReviewerClaims, error) {
	t, err := jwt.ParseWithClaims(tokenString, &ReviewerClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := t.Claims.(*ReviewerClaims); ok && t.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateRandomString generates a random hex string of a given length.
func GenerateRandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("fallback%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
