package usecase

import (
	"errors"
	"fmt"
	"time"

	"attendance-bridge/internal/admin/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const adminRole = "admin"

// TokenUsecase issues and validates admin API bearer tokens.
type TokenUsecase interface {
	IssueToken(operator string) (string, *domain.Operator, error)
	ValidateToken(tokenString string) (*domain.Operator, error)
}

// tokenUsecase implements TokenUsecase interface
type tokenUsecase struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenUsecase creates a new instance of tokenUsecase
func NewTokenUsecase(secret string, expiry time.Duration) TokenUsecase {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &tokenUsecase{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

func (u *tokenUsecase) IssueToken(operator string) (string, *domain.Operator, error) {
	if len(u.secret) == 0 {
		return "", nil, domain.ErrMissingSecret
	}
	if operator == "" {
		return "", nil, domain.ErrMissingSubject
	}

	now := u.now()
	op := &domain.Operator{
		Name:      operator,
		TokenID:   uuid.New().String(),
		IssuedAt:  now.Truncate(time.Second),
		ExpiresAt: now.Add(u.expiry).Truncate(time.Second),
	}

	claims := jwt.MapClaims{
		"sub":      op.Name,
		"role":     adminRole,
		"token_id": op.TokenID,
		"exp":      op.ExpiresAt.Unix(),
		"iat":      op.IssuedAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(u.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, op, nil
}

func (u *tokenUsecase) ValidateToken(tokenString string) (*domain.Operator, error) {
	if len(u.secret) == 0 {
		return nil, domain.ErrMissingSecret
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(u.now))
	if err != nil || !token.Valid {
		return nil, errors.Join(domain.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	if role, _ := claims["role"].(string); role != adminRole {
		return nil, domain.ErrInvalidToken
	}
	name, _ := claims["sub"].(string)
	if name == "" {
		return nil, domain.ErrInvalidToken
	}

	op := &domain.Operator{Name: name}
	op.TokenID, _ = claims["token_id"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		op.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		op.ExpiresAt = exp.Time
	}
	return op, nil
}
