package util

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"inboxtriage/pkg/rbac"
)

// Claims 控制面 token：subject 是操作者，role 决定权限
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWT 为控制面操作者签发 operator token
func GenerateJWT(subject, secret string, ttl time.Duration) (string, error) {
	return GenerateRoleJWT(subject, rbac.RoleOperator, secret, ttl)
}

// GenerateRoleJWT 签发指定角色的 token
func GenerateRoleJWT(subject, role, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if !rbac.ValidRole(role) {
		return "", errors.New("unknown role: " + role)
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJWT 校验 token 并返回 subject
func ParseJWT(tokenStr, secret string) (string, error) {
	claims, err := ParseClaims(tokenStr, secret)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ParseClaims 校验 token 并返回完整 claims
func ParseClaims(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenMalformed
	}
	return claims, nil
}

// ExtractToken 从 Authorization: Bearer 头中取出 token
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
