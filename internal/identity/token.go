package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/askline-dev/askline/shared/domain"
	internal_errors "github.com/askline-dev/askline/shared/errors"
	"github.com/askline-dev/askline/shared/logger"
)

type TokenService interface {
	NewToken(actor domain.Actor) (string, time.Time, error)
	DecodeToken(tokenStr string) (domain.ActorId, time.Time, error)
}

type Tokens struct {
	secretKey string
	ttl       time.Duration
}

var _ TokenService = (*Tokens)(nil)

func NewTokens(secretKey string, ttl time.Duration) *Tokens {
	return &Tokens{secretKey, ttl}
}

func (t *Tokens) NewToken(actor domain.Actor) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	claims := jwt.MapClaims{
		"uid":     actor.Id,
		"email":   actor.Email,
		"premium": actor.Premium,
		"iat":     issuedAt.Unix(),
		"exp":     issuedAt.Add(t.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(t.secretKey))
	if err != nil {
		logger.Log.Error("failed to sign token", "error", err)
		return "", time.Time{}, fmt.Errorf("can't create token")
	}
	return tokenString, issuedAt, nil
}

func (t *Tokens) DecodeToken(tokenStr string) (domain.ActorId, time.Time, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.secretKey), nil
	})
	if err != nil || !token.Valid {
		return "", time.Time{}, internal_errors.ErrNotAuthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, internal_errors.ErrNotAuthenticated
	}
	uid, _ := claims["uid"].(string)
	if uid == "" {
		return "", time.Time{}, internal_errors.ErrNotAuthenticated
	}
	var issuedAt time.Time
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		issuedAt = iat.Time
	}
	return uid, issuedAt, nil
}
