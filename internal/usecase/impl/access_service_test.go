package impl

import (
	"context"
	"testing"

	"backoffice/internal/domain/constants"
	"backoffice/internal/domain/entity"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessService_AuthenticateRejections(t *testing.T) {
	f := newAuthFixture(t, false)
	user := f.register(t, "guard@example.com", "password")
	out := f.login(t, "guard@example.com", "password")

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not.a.jwt"},
		{name: "refresh token presented as access token", token: out.Tokens.RefreshToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.access.Authenticate(context.Background(), tt.token)
			require.ErrorIs(t, err, domainerrors.ErrUnauthorized)
			assert.True(t, domainerrors.IsAuthenticationFailure(err))
		})
	}

	t.Run("deleted identity", func(t *testing.T) {
		require.NoError(t, (&fakeUserRepo{f.store}).Delete(context.Background(), user.ID))

		_, err := f.access.Authenticate(context.Background(), out.Tokens.AccessToken)
		require.ErrorIs(t, err, domainerrors.ErrUnauthorized)
	})
}

func TestAccessService_AuthorizeSingleGrant(t *testing.T) {
	f := newAuthFixture(t, false)
	f.register(t, "reader@example.com", "password")
	out := f.login(t, "reader@example.com", "password")

	principal, err := f.access.Authenticate(context.Background(), out.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:read"}, principal.Permissions.Names())

	require.NoError(t, f.access.Authorize(principal, "user:read"))

	err = f.access.Authorize(principal, "user:delete")
	require.ErrorIs(t, err, domainerrors.ErrForbidden)
	assert.False(t, domainerrors.IsAuthenticationFailure(err))
}

func TestAccessService_AuthorizeWithoutPrincipal(t *testing.T) {
	f := newAuthFixture(t, false)

	require.ErrorIs(t, f.access.Authorize(nil, "user:read"), domainerrors.ErrUnauthorized)
	require.ErrorIs(t, f.access.Authorize(&usecase.Principal{}, "user:read"), domainerrors.ErrUnauthorized)
}

func TestAccessService_ReloadsPermissionGraphPerRequest(t *testing.T) {
	f := newAuthFixture(t, false)
	f.register(t, "reload@example.com", "password")
	out := f.login(t, "reload@example.com", "password")
	ctx := context.Background()

	before, err := f.access.Authenticate(ctx, out.Tokens.AccessToken)
	require.NoError(t, err)
	require.False(t, before.Permissions.Has("audit:read"))

	role, err := (&fakeRoleRepo{f.store}).FindByName(ctx, constants.RoleUser)
	require.NoError(t, err)
	changed := *role
	changed.Permissions = append(changed.Permissions, entity.NewPermission(constants.ResourceAudit, constants.ActionRead, "", true))
	require.NoError(t, (&fakeRoleRepo{f.store}).UpsertRole(ctx, &changed))

	after, err := f.access.Authenticate(ctx, out.Tokens.AccessToken)
	require.NoError(t, err)
	assert.True(t, after.Permissions.Has("audit:read"))
	assert.NotEqual(t, before.Permissions.Version(), after.Permissions.Version())
}
