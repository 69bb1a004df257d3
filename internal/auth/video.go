package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VideoRolePublisher allows sending and receiving media.
const VideoRolePublisher = "publisher"

// ErrVideoNotConfigured is returned when no app id or certificate is set.
var ErrVideoNotConfigured = errors.New("video service not configured")

// VideoClaims are the claims of a meeting media token.
type VideoClaims struct {
	jwt.RegisteredClaims
	AppID   string `json:"appId"`
	Channel string `json:"channel"`
	UID     string `json:"uid"`
	Role    string `json:"role"`
}

// VideoTokenIssuer signs channel tokens with the video app certificate.
type VideoTokenIssuer struct {
	appID       string
	certificate []byte
	ttl         time.Duration
	now         func() time.Time
}

// NewVideoTokenIssuer returns an issuer. An empty appID or certificate yields an
// issuer whose Issue always fails with ErrVideoNotConfigured.
func NewVideoTokenIssuer(appID, certificate string, ttl time.Duration) *VideoTokenIssuer {
	return &VideoTokenIssuer{appID: appID, certificate: []byte(certificate), ttl: ttl, now: time.Now}
}

// Configured reports whether tokens can be issued.
func (v *VideoTokenIssuer) Configured() bool {
	return v.appID != "" && len(v.certificate) > 0
}

// AppID returns the configured application id.
func (v *VideoTokenIssuer) AppID() string {
	return v.appID
}

// Issue signs a publisher token for uid on channel.
func (v *VideoTokenIssuer) Issue(channel, uid string) (string, time.Time, error) {
	if !v.Configured() {
		return "", time.Time{}, ErrVideoNotConfigured
	}

	now := v.now().UTC()
	expiresAt := now.Add(v.ttl)
	claims := VideoClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		AppID:   v.appID,
		Channel: channel,
		UID:     uid,
		Role:    VideoRolePublisher,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.certificate)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify parses a token issued by Issue. Used by media relays and tests.
func (v *VideoTokenIssuer) Verify(token string) (*VideoClaims, error) {
	claims := &VideoClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.certificate, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
