package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/defect-dispatch/internal/domain"
)

func TestCapabilities(t *testing.T) {
	assert.True(t, CanSee(domain.RoleGeneralResponder, domain.ReportCategoryGeneral))
	assert.False(t, CanSee(domain.RoleGeneralResponder, domain.ReportCategorySpecialized))
	assert.True(t, CanSee(domain.RoleSpecializedResponder, domain.ReportCategorySpecialized))
	assert.False(t, CanSee(domain.RoleSpecializedResponder, domain.ReportCategoryGeneral))
	assert.True(t, CanSee(domain.RoleSupervisor, domain.ReportCategorySpecialized))
	assert.True(t, CanSee(domain.RoleAdmin, domain.ReportCategoryGeneral))
	assert.False(t, CanSee(domain.Role("janitor"), domain.ReportCategoryGeneral))

	assert.False(t, CanRespond(domain.RoleReporter, domain.ReportCategoryGeneral))
	assert.True(t, CanRespond(domain.RoleGeneralResponder, domain.ReportCategoryGeneral))
	assert.False(t, CanRespond(domain.RoleGeneralResponder, domain.ReportCategorySpecialized))
	assert.True(t, CanRespond(domain.RoleSupervisor, domain.ReportCategorySpecialized))

	reporter, ok := CapabilityFor(domain.RoleReporter)
	require.True(t, ok)
	assert.True(t, reporter.OwnReportsOnly)

	_, ok = CapabilityFor(domain.Role("janitor"))
	assert.False(t, ok)
}

func TestRoleSets(t *testing.T) {
	assert.ElementsMatch(t, []domain.Role{domain.RoleSupervisor, domain.RoleAdmin}, SupervisoryRoles())
	assert.ElementsMatch(t, []domain.Role{
		domain.RoleGeneralResponder,
		domain.RoleSpecializedResponder,
		domain.RoleSupervisor,
		domain.RoleAdmin,
	}, ResponderRoles())
}

func TestCapabilityTableCoversEveryRole(t *testing.T) {
	assert.Equal(t, domain.AllRoles, Roles(), "every known role has a capability entry")
	assert.Len(t, capabilities, len(domain.AllRoles), "no capability entry for an unknown role")
	for role := range capabilities {
		assert.True(t, role.IsValid(), "role %q", role)
	}
	assert.False(t, domain.Role("janitor").IsValid())
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expiresAt, err := tm.GenerateToken("user-1", domain.RoleSupervisor)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, domain.RoleSupervisor, claims.Role)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	_, _, err := tm.GenerateToken("", domain.RoleAdmin)
	assert.Error(t, err)
	_, _, err = tm.GenerateToken("u", domain.Role("janitor"))
	assert.Error(t, err)

	other := NewTokenManager("other-secret", 5)
	token, _, err := other.GenerateToken("user-1", domain.RoleAdmin)
	require.NoError(t, err)
	_, err = tm.ParseToken(token)
	assert.Error(t, err, "signature from another key")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(signed)
	assert.Error(t, err)
}
