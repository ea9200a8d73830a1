package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/animegate/internal/audit/domain"
	"github.com/smallbiznis/animegate/internal/audit/repository"
	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/migration"
	obscontext "github.com/smallbiznis/animegate/internal/observability/context"
	"github.com/smallbiznis/animegate/pkg/telemetry/correlation"
	"github.com/smallbiznis/animegate/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuditService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	}), clk
}

func TestAuditLogCapturesCorrelation(t *testing.T) {
	svc, _ := newAuditService(t)
	ctx := correlation.ContextWithCorrelationID(context.Background(), "upd-99")
	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeAdmin), "7")

	target := "42"
	require.NoError(t, svc.AuditLog(ctx, "", nil, auditdomain.ActionBalanceCredited, "user", &target, map[string]any{"amount": 1000}))

	logs, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{Action: auditdomain.ActionBalanceCredited})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "admin", logs[0].ActorType)
	require.NotNil(t, logs[0].ActorID)
	assert.Equal(t, "7", *logs[0].ActorID)
	assert.Equal(t, "upd-99", logs[0].Metadata["correlation_id"])
}

func TestAuditLogDefaultsToSystem(t *testing.T) {
	svc, _ := newAuditService(t)
	require.NoError(t, svc.AuditLog(context.Background(), "", nil, auditdomain.ActionBroadcastStart, "", nil, nil))

	logs, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "system", logs[0].ActorType)
	assert.Equal(t, "unknown", logs[0].TargetType)
	assert.Nil(t, logs[0].ActorID)
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc, _ := newAuditService(t)
	err := svc.AuditLog(context.Background(), "admin", nil, " ", "user", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListFiltersAndOrders(t *testing.T) {
	svc, clk := newAuditService(t)
	ctx := context.Background()
	for _, target := range []string{"1", "2", "1"} {
		id := target
		require.NoError(t, svc.AuditLog(ctx, "admin", nil, auditdomain.ActionEpisodeAdded, "title", &id, nil))
		clk.Advance(time.Minute)
	}

	logs, err := svc.List(ctx, auditdomain.ListAuditLogRequest{TargetType: "title", TargetID: "1"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].CreatedAt.After(logs[1].CreatedAt))

	logs, err = svc.List(ctx, auditdomain.ListAuditLogRequest{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
