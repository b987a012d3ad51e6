package auth

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks securecart/internal/services/auth TokenGenerator

import (
	"errors"
	"fmt"
	"time"

	"securecart/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "securecart"

// TokenPair is one access/refresh pair. The jtis double as session keys.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessJTI        string
	RefreshJTI       string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

type TokenGenerator interface {
	Generate(user *models.User, accessJTI, refreshJTI string, accessTTL time.Duration, rememberMe bool) (*TokenPair, error)
	Parse(token string) (*models.UserClaims, error)
	RefreshTTL() time.Duration
}

type TokenService struct {
	secret     []byte
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (ts *TokenService) RefreshTTL() time.Duration {
	return ts.refreshTTL
}

func (ts *TokenService) Generate(user *models.User, accessJTI, refreshJTI string, accessTTL time.Duration, rememberMe bool) (*TokenPair, error) {
	now := ts.now()
	pair := &TokenPair{
		AccessJTI:        accessJTI,
		RefreshJTI:       refreshJTI,
		ExpiresAt:        now.Add(accessTTL),
		RefreshExpiresAt: now.Add(ts.refreshTTL),
	}
	if pair.RefreshExpiresAt.Before(pair.ExpiresAt) {
		pair.RefreshExpiresAt = pair.ExpiresAt
	}

	access := ts.claims(user, accessJTI, models.TokenTypeAccess, now, pair.ExpiresAt, rememberMe)
	access.Permissions = models.GetDefaultPermissions(user.Role)
	refresh := ts.claims(user, refreshJTI, models.TokenTypeRefresh, now, pair.RefreshExpiresAt, rememberMe)

	var err error
	if pair.AccessToken, err = ts.sign(access); err != nil {
		return nil, err
	}
	if pair.RefreshToken, err = ts.sign(refresh); err != nil {
		return nil, err
	}
	return pair, nil
}

func (ts *TokenService) claims(user *models.User, jti, kind string, now, exp time.Time, rememberMe bool) *models.UserClaims {
	return &models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID:     user.ID.String(),
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		TokenType:  kind,
		RememberMe: rememberMe,
	}
}

func (ts *TokenService) sign(c *models.UserClaims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", c.TokenType, err)
	}
	return token, nil
}

// Parse verifies the signature and expiry and returns the claims.
func (ts *TokenService) Parse(tokenString string) (*models.UserClaims, error) {
	claims := &models.UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(ts.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}
