package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/commandgrid/pmt/internal/model"
)

// Token types carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken is returned when a token is malformed or its signature does not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrWrongTokenType is returned when a refresh token is presented as an access token or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims are the JWT claims for PMT access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Type           string `json:"typ"`
	UserID         string `json:"userId"`
	CompanyID      string `json:"companyId,omitempty"`
	Role           string `json:"role,omitempty"`
	IsAdmin        bool   `json:"isAdmin"`
	ImpersonatedBy string `json:"impersonatedBy,omitempty"`
}

// AuthContext converts validated claims into the request principal.
func (c *Claims) AuthContext() *model.AuthContext {
	ac := &model.AuthContext{
		UserID:         c.UserID,
		CompanyID:      c.CompanyID,
		Role:           c.Role,
		IsAdmin:        c.IsAdmin,
		TokenID:        c.ID,
		ImpersonatedBy: c.ImpersonatedBy,
	}
	if c.ExpiresAt != nil {
		ac.ExpiresAt = c.ExpiresAt.Time
	}
	return ac
}

// Subject identifies the user a token is issued to.
type Subject struct {
	UserID    string
	CompanyID string
	Role      string
	IsAdmin   bool
}

// SubjectFromUser builds a Subject, reporting role as displayed at login.
func SubjectFromUser(u *model.User, role string) Subject {
	if role == "" {
		role = u.Role
	}
	return Subject{UserID: u.ID, CompanyID: u.CompanyIDValue(), Role: role, IsAdmin: u.HasAdminRights()}
}

// TokenPair is an access token with its refresh token.
type TokenPair struct {
	AuthToken        string    `json:"authToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// TokenManager issues and validates HS256 tokens. Access and refresh tokens are
// signed with different secrets.
type TokenManager struct {
	accessSecret     []byte
	refreshSecret    []byte
	issuer           string
	accessTTL        time.Duration
	refreshTTL       time.Duration
	impersonationTTL time.Duration
	now              func() time.Time
}

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	AccessSecret     string
	RefreshSecret    string
	Issuer           string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ImpersonationTTL time.Duration
}

// NewTokenManager returns a TokenManager for cfg.
func NewTokenManager(cfg TokenConfig) *TokenManager {
	return &TokenManager{
		accessSecret:     []byte(cfg.AccessSecret),
		refreshSecret:    []byte(cfg.RefreshSecret),
		issuer:           cfg.Issuer,
		accessTTL:        cfg.AccessTTL,
		refreshTTL:       cfg.RefreshTTL,
		impersonationTTL: cfg.ImpersonationTTL,
		now:              time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (m *TokenManager) SetClock(now func() time.Time) {
	m.now = now
}

// IssuePair issues a fresh access + refresh token pair.
func (m *TokenManager) IssuePair(s Subject) (*TokenPair, error) {
	access, accessExp, err := m.issue(s, TokenTypeAccess, "", m.accessTTL, m.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := m.issue(s, TokenTypeRefresh, "", m.refreshTTL, m.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &TokenPair{
		AuthToken:        access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueImpersonation issues a short-lived access token for s on behalf of adminID.
// No refresh token is issued for impersonation.
func (m *TokenManager) IssueImpersonation(s Subject, adminID string) (string, time.Time, error) {
	return m.issue(s, TokenTypeAccess, adminID, m.impersonationTTL, m.accessSecret)
}

// ParseAccess validates an access token.
func (m *TokenManager) ParseAccess(token string) (*Claims, error) {
	return m.parse(token, TokenTypeAccess, m.accessSecret)
}

// ParseRefresh validates a refresh token.
func (m *TokenManager) ParseRefresh(token string) (*Claims, error) {
	return m.parse(token, TokenTypeRefresh, m.refreshSecret)
}

func (m *TokenManager) issue(s Subject, typ, impersonatedBy string, ttl time.Duration, secret []byte) (string, time.Time, error) {
	now := m.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type:           typ,
		UserID:         s.UserID,
		CompanyID:      s.CompanyID,
		Role:           s.Role,
		IsAdmin:        s.IsAdmin,
		ImpersonatedBy: impersonatedBy,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *TokenManager) parse(tokenString, typ string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
