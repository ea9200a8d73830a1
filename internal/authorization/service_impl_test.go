package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/animegate/internal/config"
	"github.com/smallbiznis/animegate/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, bootstrap []int64, botAdmins []int64) Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	botCfg := config.DefaultBotConfig()
	botCfg.Admins = botAdmins

	svc, err := NewService(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		Config:    config.Config{BootstrapAdmins: bootstrap},
		BotConfig: config.NewStaticBotConfigHolder(botCfg),
		Enforcer:  enforcer,
	})
	require.NoError(t, err)
	return svc
}

func TestBootstrapOwnerCanGrantAdmins(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, []int64{100}, nil)

	assert.True(t, svc.IsOwner(ctx, 100))
	assert.True(t, svc.IsAdmin(ctx, 100))
	assert.False(t, svc.IsAdmin(ctx, 200))

	require.NoError(t, svc.GrantAdmin(ctx, 100, 200))
	assert.True(t, svc.IsAdmin(ctx, 200))
	assert.False(t, svc.IsOwner(ctx, 200))
	assert.NoError(t, svc.Authorize(ctx, 200, ObjectCatalog, ActionCatalogManage))

	admins, err := svc.Admins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, admins)
}

func TestAdminCannotGrantAdmins(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, []int64{1}, nil)
	require.NoError(t, svc.GrantAdmin(ctx, 1, 2))

	err := svc.GrantAdmin(ctx, 2, 3)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.False(t, svc.IsAdmin(ctx, 3))
}

func TestRevokeAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, []int64{1}, nil)
	require.NoError(t, svc.GrantAdmin(ctx, 1, 2))
	require.NoError(t, svc.RevokeAdmin(ctx, 1, 2))
	assert.False(t, svc.IsAdmin(ctx, 2))
}

func TestConfiguredAdminsAreOwners(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, []int64{555})

	assert.True(t, svc.IsOwner(ctx, 555))
	require.NoError(t, svc.GrantAdmin(ctx, 555, 777))

	admins, err := svc.Admins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{555, 777}, admins)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil)

	assert.ErrorIs(t, svc.Authorize(ctx, 0, ObjectPanel, ActionPanelView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, 1, " ", ActionPanelView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, 1, ObjectPanel, ""), ErrInvalidAction)
	assert.ErrorIs(t, svc.Authorize(ctx, 1, ObjectPanel, ActionPanelView), ErrForbidden)
}
