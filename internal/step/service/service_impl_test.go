package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/migration"
	"github.com/smallbiznis/animegate/internal/step/domain"
	"github.com/smallbiznis/animegate/internal/step/repository"
	"github.com/smallbiznis/animegate/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newStepService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)),
	})
	return svc, conn
}

func TestGetWithoutStepIsIdle(t *testing.T) {
	svc, _ := newStepService(t)
	step, err := svc.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, step.IsIdle())
}

func TestSetOverwritesWholeStep(t *testing.T) {
	ctx := context.Background()
	svc, _ := newStepService(t)

	first := domain.Start(domain.FlowAddTitle).Advance("name", "Naruto").Advance("episodes", "220")
	require.NoError(t, svc.Set(ctx, 5, first))

	got, err := svc.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.FlowAddTitle, got.Flow)
	assert.Equal(t, 2, got.Stage)
	assert.Equal(t, "Naruto", got.Field("name"))

	require.NoError(t, svc.Set(ctx, 5, domain.Start(domain.FlowSearchByName)))
	got, err = svc.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.FlowSearchByName, got.Flow)
	assert.Zero(t, got.Stage)
	assert.Empty(t, got.Field("name"), "fields of the previous flow must not leak")
}

func TestSetIdleClears(t *testing.T) {
	ctx := context.Background()
	svc, _ := newStepService(t)

	require.NoError(t, svc.Set(ctx, 5, domain.Start(domain.FlowBroadcast)))
	require.NoError(t, svc.Set(ctx, 5, domain.Idle()))

	got, err := svc.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, got.IsIdle())
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newStepService(t)

	require.NoError(t, svc.Set(ctx, 5, domain.Start(domain.FlowManageUser).Advance("user_id", "42")))
	require.NoError(t, svc.Clear(ctx, 5))
	require.NoError(t, svc.Clear(ctx, 5))

	got, err := svc.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, got.IsIdle())
}

func TestUnknownStoredFlowReadsAsIdle(t *testing.T) {
	ctx := context.Background()
	svc, conn := newStepService(t)

	require.NoError(t, conn.Create(&domain.Record{
		UserID: 9,
		Flow:   "legacy_upload",
		Fields: datatypes.JSONMap{},
	}).Error)

	got, err := svc.Get(ctx, 9)
	require.NoError(t, err)
	assert.True(t, got.IsIdle())
}

func TestSetValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newStepService(t)

	assert.ErrorIs(t, svc.Set(ctx, 0, domain.Start(domain.FlowAddTitle)), domain.ErrInvalidUser)
	assert.ErrorIs(t, svc.Set(ctx, 1, domain.Step{Flow: "nope"}), domain.ErrInvalidFlow)
	_, err := svc.Get(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestStepHelpers(t *testing.T) {
	step := domain.Start(domain.FlowManageUser).Advance("user_id", "1234")
	id, err := step.Int64Field("user_id")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), id)

	_, err = step.Int64Field("amount")
	assert.Error(t, err)

	assert.True(t, domain.FlowAddEpisode.AdminOnly())
	assert.False(t, domain.FlowSearchByCode.AdminOnly())
}
