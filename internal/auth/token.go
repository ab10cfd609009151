package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/account-service/internal/domain"
)

const refreshTokenBytes = 64

// TokenManager handles issuing and validating JWT access tokens and
// generating opaque refresh tokens.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret, issuer, audience string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      time.Duration(ttlMinutes) * time.Minute,
	}
}

// AccessTokenTTL returns the configured access-token lifetime.
func (tm *TokenManager) AccessTokenTTL() time.Duration {
	return tm.ttl
}

// Claims describes the access-token payload.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueAccessToken builds and signs a claims-bearing JWT for the account.
func (tm *TokenManager) IssueAccessToken(accountID int64, email string, role domain.Role) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{tm.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// IssueRefreshToken returns a base64 encoding of 64 cryptographically
// random bytes. Opaque on purpose; validity lives in the store.
func (tm *TokenManager) IssueRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// ParseClaims validates signature, issuer, audience and lifetime with
// zero clock-skew tolerance, returning the typed claims.
func (tm *TokenManager) ParseClaims(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return tm.secret, nil
		},
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(tm.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Validate reports whether an access token is currently valid. It
// never returns an error; any parse or validation failure is false.
func (tm *TokenManager) Validate(tokenStr string) bool {
	_, err := tm.ParseClaims(tokenStr)
	return err == nil
}

// AccountID extracts the numeric subject id from claims.
func (c *Claims) AccountID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}
