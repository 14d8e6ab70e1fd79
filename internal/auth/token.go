package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
	KindVerify  TokenKind = "verify"
)

type Claims struct {
	jwt.RegisteredClaims
	Kind    TokenKind   `json:"typ"`
	Role    domain.Role `json:"role,omitempty"`
	Version int64       `json:"ver,omitempty"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	VerifyTTL     time.Duration
}

// TokenManager issues and validates HS256 tokens. Access tokens are stateless;
// refresh tokens carry the user's refresh version so they can be revoked.
type TokenManager struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenManager(cfg TokenConfig) *TokenManager {
	if cfg.VerifyTTL == 0 {
		cfg.VerifyTTL = 24 * time.Hour
	}
	return &TokenManager{cfg: cfg, now: time.Now}
}

func (m *TokenManager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

func (m *TokenManager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

func (m *TokenManager) IssuePair(user *domain.User, refreshVersion int64) (*TokenPair, error) {
	access, err := m.sign(m.cfg.AccessSecret, m.claims(user.ID, KindAccess, m.cfg.AccessTTL, func(c *Claims) {
		c.Role = user.Role
	}))
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(m.cfg.RefreshSecret, m.claims(user.ID, KindRefresh, m.cfg.RefreshTTL, func(c *Claims) {
		c.Version = refreshVersion
	}))
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueVerify signs an email-verification token with the refresh secret.
func (m *TokenManager) IssueVerify(userID primitive.ObjectID) (string, error) {
	return m.sign(m.cfg.RefreshSecret, m.claims(userID, KindVerify, m.cfg.VerifyTTL, nil))
}

func (m *TokenManager) ParseAccess(token string) (*Claims, error) {
	return m.parse(token, m.cfg.AccessSecret, KindAccess)
}

func (m *TokenManager) ParseRefresh(token string) (*Claims, error) {
	return m.parse(token, m.cfg.RefreshSecret, KindRefresh)
}

func (m *TokenManager) ParseVerify(token string) (*Claims, error) {
	return m.parse(token, m.cfg.RefreshSecret, KindVerify)
}

// UserID returns the subject as an ObjectID.
func (c *Claims) UserID() (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Subject)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidToken
	}
	return id, nil
}

func (m *TokenManager) claims(userID primitive.ObjectID, kind TokenKind, ttl time.Duration, extra func(*Claims)) *Claims {
	now := m.now()
	c := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}
	if extra != nil {
		extra(c)
	}
	return c
}

func (m *TokenManager) sign(secret []byte, claims *Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.Kind, err)
	}
	return signed, nil
}

func (m *TokenManager) parse(token string, secret []byte, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
