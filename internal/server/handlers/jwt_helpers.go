package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/boardsync/internal/models"
)

// tokenIssuer значение claim iss для токенов relay-сервера
const tokenIssuer = "boardsync"

// ErrInvalidRole токен несет неизвестную роль
var ErrInvalidRole = errors.New("invalid role in token")

// Claims представляет JWT claims участника доски.
// Пустой BoardID дает доступ ко всем доскам сервера.
type Claims struct {
	UserID  string      `json:"user_id"`
	Role    models.Role `json:"role"`
	BoardID string      `json:"board_id,omitempty"`
	jwt.RegisteredClaims
}

// AllowsBoard reports whether the token grants access to boardID.
func (c *Claims) AllowsBoard(boardID string) bool {
	return c.BoardID == "" || c.BoardID == boardID
}

// JWTConfig содержит конфигурацию для JWT
type JWTConfig struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

// GenerateAccessToken создает новый JWT access token
func GenerateAccessToken(cfg JWTConfig, userID string, role models.Role, boardID string) (string, int64, error) {
	if !role.Valid() {
		return "", 0, ErrInvalidRole
	}

	now := time.Now()
	expiresAt := now.Add(cfg.AccessTokenTTL)

	claims := Claims{
		UserID:  userID,
		Role:    role,
		BoardID: boardID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, int64(cfg.AccessTokenTTL.Seconds()), nil
}

// ValidateAccessToken валидирует и парсит JWT access token
func ValidateAccessToken(cfg JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	}, jwt.WithIssuer(tokenIssuer))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return claims, nil
}
