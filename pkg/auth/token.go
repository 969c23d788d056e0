// review-service/pkg/auth/token.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the "typ" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// MinSecretLength is the shortest HMAC key accepted outside development.
const MinSecretLength = 32

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrWrongTokenKind = errors.New("wrong token kind")
)

// TokenPair is an access/refresh credential pair.
type TokenPair struct {
	Access  string
	Refresh string
}

// TokenManager issues and verifies signed tokens.
type TokenManager interface {
	IssuePair(userID, username, role string) (TokenPair, error)
	IssueAccess(userID, username, role string) (string, error)
	Validate(tokenString, kind string) (*Claims, error)
}

// Claims is the JWT payload.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Kind     string `json:"typ"`
	jwt.RegisteredClaims
}

type jwtManager struct {
	secretKey  []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager creates an HS256 token manager.
func NewTokenManager(secretKey, issuer string, accessTTL, refreshTTL time.Duration) (TokenManager, error) {
	if secretKey == "" {
		return nil, errors.New("JWT secret key cannot be empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &jwtManager{
		secretKey:  []byte(secretKey),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (m *jwtManager) IssuePair(userID, username, role string) (TokenPair, error) {
	access, err := m.sign(userID, username, role, KindAccess, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.sign(userID, username, role, KindRefresh, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *jwtManager) IssueAccess(userID, username, role string) (string, error) {
	return m.sign(userID, username, role, KindAccess, m.accessTTL)
}

func (m *jwtManager) sign(userID, username, role, kind string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Validate verifies signature, expiry and issuer and checks the token kind.
func (m *jwtManager) Validate(tokenString, kind string) (*Claims, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{jwt.WithTimeFunc(m.now)}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}
