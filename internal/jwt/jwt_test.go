package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/valora-admin/internal/domain"
	customjwt "github.com/smallbiznis/valora-admin/internal/jwt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testAdmin() domain.Admin {
	return domain.Admin{ID: 99, Email: "admin@example.com", IsActive: true, Role: domain.RoleAdmin}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	generator := customjwt.NewGenerator(testSecret, "valora-admin", time.Hour, 24*time.Hour)

	token, err := generator.GenerateAccessToken(testAdmin())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := generator.VerifyAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(99), claims.AdminID)
	require.Equal(t, domain.RoleAdmin, claims.Role)
	require.True(t, claims.IsActive)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	generator := customjwt.NewGenerator(testSecret, "valora-admin", time.Hour, 24*time.Hour)

	token, err := generator.GenerateRefreshToken(testAdmin())
	require.NoError(t, err)

	claims, err := generator.VerifyRefreshToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(99), claims.AdminID)
}

func TestTokenUseIsEnforced(t *testing.T) {
	generator := customjwt.NewGenerator(testSecret, "valora-admin", time.Hour, 24*time.Hour)

	access, err := generator.GenerateAccessToken(testAdmin())
	require.NoError(t, err)
	refresh, err := generator.GenerateRefreshToken(testAdmin())
	require.NoError(t, err)

	_, err = generator.VerifyRefreshToken(access)
	require.ErrorIs(t, err, customjwt.ErrInvalidToken)
	_, err = generator.VerifyAccessToken(refresh)
	require.ErrorIs(t, err, customjwt.ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	generator := customjwt.NewGenerator(testSecret, "valora-admin", -2*time.Hour, -2*time.Hour)

	token, err := generator.GenerateAccessToken(testAdmin())
	require.NoError(t, err)

	_, err = generator.VerifyAccessToken(token)
	require.ErrorIs(t, err, customjwt.ErrInvalidToken)
}

func TestTamperedTokenRejected(t *testing.T) {
	generator := customjwt.NewGenerator(testSecret, "valora-admin", time.Hour, 24*time.Hour)
	other := customjwt.NewGenerator([]byte("another-secret-another-secret-00"), "valora-admin", time.Hour, 24*time.Hour)

	token, err := other.GenerateAccessToken(testAdmin())
	require.NoError(t, err)

	_, err = generator.VerifyAccessToken(token)
	require.ErrorIs(t, err, customjwt.ErrInvalidToken)
}
