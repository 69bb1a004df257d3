package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commandgrid/pmt/internal/model"
)

func newTestManager() *TokenManager {
	return NewTokenManager(TokenConfig{
		AccessSecret:     "access-secret",
		RefreshSecret:    "refresh-secret",
		Issuer:           "pmt-test",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
		ImpersonationTTL: time.Hour,
	})
}

var testSubject = Subject{UserID: "u1", CompanyID: "c1", Role: model.RoleManager}

func TestTokenManager_IssueAndParsePair(t *testing.T) {
	m := newTestManager()

	pair, err := m.IssuePair(testSubject)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AuthToken, pair.RefreshToken)

	access, err := m.ParseAccess(pair.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", access.UserID)
	assert.Equal(t, "c1", access.CompanyID)
	assert.Equal(t, model.RoleManager, access.Role)
	assert.Equal(t, TokenTypeAccess, access.Type)
	assert.NotEmpty(t, access.ID)

	refresh, err := m.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.Type)
	assert.NotEqual(t, access.ID, refresh.ID)
}

func TestTokenManager_RejectsWrongType(t *testing.T) {
	m := newTestManager()
	pair, err := m.IssuePair(testSubject)
	require.NoError(t, err)

	// A refresh token is signed with the refresh secret, so it fails signature checks as access.
	_, err = m.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Same secret, wrong typ claim.
	same := NewTokenManager(TokenConfig{
		AccessSecret: "shared", RefreshSecret: "shared", Issuer: "pmt-test",
		AccessTTL: time.Minute, RefreshTTL: time.Hour,
	})
	pair, err = same.IssuePair(testSubject)
	require.NoError(t, err)
	_, err = same.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestTokenManager_Expired(t *testing.T) {
	m := newTestManager()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return start })

	pair, err := m.IssuePair(testSubject)
	require.NoError(t, err)

	m.SetClock(func() time.Time { return start.Add(16 * time.Minute) })
	_, err = m.ParseAccess(pair.AuthToken)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = m.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenManager_Tampered(t *testing.T) {
	m := newTestManager()
	pair, err := m.IssuePair(testSubject)
	require.NoError(t, err)

	other := NewTokenManager(TokenConfig{
		AccessSecret: "other", RefreshSecret: "other-refresh", Issuer: "pmt-test",
		AccessTTL: time.Minute, RefreshTTL: time.Hour,
	})
	_, err = other.ParseAccess(pair.AuthToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ParseAccess("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewTokenManager(TokenConfig{
		AccessSecret: "access-secret", RefreshSecret: "refresh-secret", Issuer: "someone-else",
		AccessTTL: time.Minute, RefreshTTL: time.Hour,
	})
	_, err = wrongIssuer.ParseAccess(pair.AuthToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Impersonation(t *testing.T) {
	m := newTestManager()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return start })

	token, exp, err := m.IssueImpersonation(testSubject, "admin-1")
	require.NoError(t, err)
	assert.True(t, start.Add(time.Hour).Equal(exp))

	claims, err := m.ParseAccess(token)
	require.NoError(t, err)

	ac := claims.AuthContext()
	assert.True(t, ac.IsImpersonating())
	assert.Equal(t, "admin-1", ac.ImpersonatedBy)
	assert.Equal(t, "u1", ac.UserID)
	assert.True(t, exp.Equal(ac.ExpiresAt))
}

func TestSubjectFromUser(t *testing.T) {
	company := "c1"
	u := &model.User{ID: "u1", CompanyID: &company, Role: model.RoleMember}

	s := SubjectFromUser(u, model.RoleTeamLeader)
	assert.Equal(t, model.RoleTeamLeader, s.Role)
	assert.Equal(t, "c1", s.CompanyID)
	assert.False(t, s.IsAdmin)

	u.Role = model.RoleAdmin
	s = SubjectFromUser(u, "")
	assert.Equal(t, model.RoleAdmin, s.Role)
	assert.True(t, s.IsAdmin)
}

func TestAuthContextRoundTrip(t *testing.T) {
	ac := &model.AuthContext{UserID: "u1", CompanyID: "c1"}
	ctx := ContextWithAuth(context.Background(), ac)

	assert.Same(t, ac, AuthFromContext(ctx))
	assert.Equal(t, "u1", UserIDFromContext(ctx))
	assert.Nil(t, AuthFromContext(context.Background()))
	assert.Equal(t, "", UserIDFromContext(context.Background()))
}

func TestVideoTokenIssuer(t *testing.T) {
	unconfigured := NewVideoTokenIssuer("", "", time.Hour)
	_, _, err := unconfigured.Issue("pmt-1", "u1")
	assert.True(t, errors.Is(err, ErrVideoNotConfigured))

	v := NewVideoTokenIssuer("app-1", "cert", 24*time.Hour)
	token, exp, err := v.Issue("pmt-1", "u1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), exp, time.Minute)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "app-1", claims.AppID)
	assert.Equal(t, "pmt-1", claims.Channel)
	assert.Equal(t, "u1", claims.UID)
	assert.Equal(t, VideoRolePublisher, claims.Role)
}
