package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/microlearn/auth-service/app/entity"
	"github.com/microlearn/auth-service/config"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenPayload is the identity a signed token carries. Its integrity is
// guaranteed solely by the signature.
type TokenPayload struct {
	UserID uint64
	Email  string
	Role   entity.Role
}

type Claims struct {
	UserID uint64      `json:"user_id"`
	Email  string      `json:"email"`
	Role   entity.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Payload() TokenPayload {
	return TokenPayload{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

// TokenCodec signs and verifies access and refresh tokens. The two classes
// use distinct secrets so a token of one class never validates as the other.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenCodec(cfg config.JWTConfig) *TokenCodec {
	return &TokenCodec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
	}
}

func (c *TokenCodec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *TokenCodec) IssueAccess(payload TokenPayload) (string, error) {
	return c.sign(payload, c.accessSecret, c.accessTTL)
}

func (c *TokenCodec) IssueRefresh(payload TokenPayload) (string, error) {
	return c.sign(payload, c.refreshSecret, c.refreshTTL)
}

func (c *TokenCodec) VerifyAccess(tokenString string) (*Claims, error) {
	return c.parse(tokenString, c.accessSecret)
}

func (c *TokenCodec) VerifyRefresh(tokenString string) (*Claims, error) {
	return c.parse(tokenString, c.refreshSecret)
}

func (c *TokenCodec) sign(payload TokenPayload, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: payload.UserID,
		Email:  payload.Email,
		Role:   payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   payload.Email,
			// jti keeps every issued token unique, even two refresh tokens
			// minted for the same user within one clock tick.
			ID: uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (c *TokenCodec) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
