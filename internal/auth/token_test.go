package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-platform/internal/domain"
)

func TestGenerateAndParseToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)
	tenantID := "tenant-a"
	user := &domain.User{ID: "user-1", TenantID: &tenantID, Role: domain.UserRoleManager}

	token, expiresAt, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, "tenant-a", *claims.TenantID)
	assert.Equal(t, domain.UserRoleManager, claims.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", 30)
	verifier := NewTokenManager("secret-b", 30)

	token, _, err := issuer.GenerateToken(&domain.User{ID: "user-1", Role: domain.UserRoleEmployee})
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	require.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)
	_, err := tm.ParseToken("not.a.token")
	require.Error(t, err)
}

func TestTokenOmitsTenantForSuperAdmin(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)
	token, _, err := tm.GenerateToken(&domain.User{ID: "root", Role: domain.UserRoleSuperAdmin})
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.TenantID)
	assert.Equal(t, domain.UserRoleSuperAdmin, claims.Role)
}

func TestNewTokenManagerDefaultsTTL(t *testing.T) {
	tm := NewTokenManager("test-secret", 0)
	_, expiresAt, err := tm.GenerateToken(&domain.User{ID: "user-1", Role: domain.UserRoleEmployee})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)
}
