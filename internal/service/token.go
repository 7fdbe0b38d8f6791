package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Роли, которые понимает API.
const (
	RoleCompany = "company"
	RoleAdmin   = "admin"
)

// Principal описывает проверенного владельца токена. Subject содержит ID компании.
type Principal struct {
	Subject uuid.UUID
	Role    string
}

// IsAdmin сообщает, есть ли у владельца права администратора.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// TokenVerifier проверяет access токены, выпущенные сервисом аутентификации.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier создаёт проверяющего с общим HMAC секретом.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify проверяет подпись и срок токена и возвращает владельца.
func (v *TokenVerifier) Verify(token string) (Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}
	subject, err := uuid.Parse(sub)
	if err != nil {
		return Principal{}, err
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = RoleCompany
	}

	return Principal{Subject: subject, Role: role}, nil
}

// Issue подписывает токен тем же секретом. Используется в тестах и служебных утилитах.
func (v *TokenVerifier) Issue(subject uuid.UUID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject.String(),
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
