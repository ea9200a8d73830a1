package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/animegate/internal/broadcast/domain"
	"github.com/smallbiznis/animegate/internal/broadcast/repository"
	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/config"
	"github.com/smallbiznis/animegate/internal/migration"
	"github.com/smallbiznis/animegate/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticRecipients struct {
	ids []int64
}

func (r staticRecipients) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	out := []int64{}
	for _, id := range r.ids {
		if id > afterID {
			out = append(out, id)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeSender struct {
	mu        sync.Mutex
	delivered []int64
	fail      map[int64]bool
	gate      chan struct{}
	reports   chan domain.Report
	panicOn   int64
}

func newFakeSender() *fakeSender {
	return &fakeSender{fail: map[int64]bool{}, reports: make(chan domain.Report, 4)}
}

func (s *fakeSender) Deliver(ctx context.Context, job domain.Job, recipientID int64) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if recipientID == s.panicOn {
		panic("boom")
	}
	if s.fail[recipientID] {
		return errors.New("bot was blocked by the user")
	}
	s.mu.Lock()
	s.delivered = append(s.delivered, recipientID)
	s.mu.Unlock()
	return nil
}

func (s *fakeSender) Finished(ctx context.Context, job domain.Job, report domain.Report) {
	s.reports <- report
}

func newBroadcastService(t *testing.T, sender *fakeSender, ids []int64) domain.Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	botCfg := config.DefaultBotConfig()
	botCfg.Broadcast = config.BroadcastConfig{Concurrency: 3, PageSize: 2}

	return New(Params{
		DB:         conn,
		Log:        zap.NewNop(),
		GenID:      node,
		Repo:       repository.Provide(),
		Sender:     sender,
		Recipients: staticRecipients{ids: ids},
		BotConfig:  config.NewStaticBotConfigHolder(botCfg),
		Clock:      clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
	})
}

func startRequest() domain.StartRequest {
	return domain.StartRequest{AdminID: 1, SourceChat: 1, SourceMessage: 77}
}

func waitReport(t *testing.T, sender *fakeSender) domain.Report {
	t.Helper()
	select {
	case report := <-sender.reports:
		return report
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast did not finish")
	}
	return domain.Report{}
}

func TestStartDeliversToEveryUser(t *testing.T) {
	sender := newFakeSender()
	sender.fail[3] = true
	svc := newBroadcastService(t, sender, []int64{1, 2, 3, 4, 5})

	job, err := svc.Start(context.Background(), startRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeCopy, job.Mode)

	report := waitReport(t, sender)
	svc.Wait()

	assert.Equal(t, 4, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.Aborted)

	sender.mu.Lock()
	delivered := append([]int64(nil), sender.delivered...)
	sender.mu.Unlock()
	sort.Slice(delivered, func(i, j int) bool { return delivered[i] < delivered[j] })
	assert.Equal(t, []int64{1, 2, 4, 5}, delivered)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current, "slot must be released after the run")
}

func TestSecondStartIsRejectedWhileRunning(t *testing.T) {
	sender := newFakeSender()
	sender.gate = make(chan struct{})
	svc := newBroadcastService(t, sender, []int64{10, 11})
	ctx := context.Background()

	first, err := svc.Start(ctx, startRequest())
	require.NoError(t, err)

	_, err = svc.Start(ctx, startRequest())
	require.ErrorIs(t, err, domain.ErrAlreadyRunning)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, first.ID, current.ID)

	close(sender.gate)
	waitReport(t, sender)
	svc.Wait()

	_, err = svc.Start(ctx, startRequest())
	require.NoError(t, err)
	waitReport(t, sender)
	svc.Wait()
}

func TestAbortReleasesSlot(t *testing.T) {
	sender := newFakeSender()
	sender.gate = make(chan struct{})
	svc := newBroadcastService(t, sender, []int64{1, 2, 3})
	ctx := context.Background()

	_, err := svc.Start(ctx, startRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Abort(ctx))

	report := waitReport(t, sender)
	svc.Wait()
	assert.True(t, report.Aborted)

	assert.ErrorIs(t, svc.Abort(ctx), domain.ErrNotRunning)
	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestPanickingDeliveryStillReleases(t *testing.T) {
	sender := newFakeSender()
	sender.panicOn = 2
	svc := newBroadcastService(t, sender, []int64{1, 2, 3})

	_, err := svc.Start(context.Background(), startRequest())
	require.NoError(t, err)

	report := waitReport(t, sender)
	svc.Wait()
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)

	_, err = svc.Start(context.Background(), startRequest())
	require.NoError(t, err)
	waitReport(t, sender)
	svc.Wait()
}

func TestStartValidation(t *testing.T) {
	svc := newBroadcastService(t, newFakeSender(), nil)
	_, err := svc.Start(context.Background(), domain.StartRequest{SourceChat: 1, SourceMessage: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidAdmin)
	_, err = svc.Start(context.Background(), domain.StartRequest{AdminID: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
}

func TestReleaseStaleFreesOrphanedSlot(t *testing.T) {
	svc := newBroadcastService(t, newFakeSender(), []int64{1}).(*Service)
	ctx := context.Background()
	heartbeat := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// a runner from a previous process that never released its slot
	orphan := domain.NewJob(svc.genID.Generate(), 1, 1, 77, domain.ModeCopy, heartbeat)
	inserted, err := svc.repo.TryInsert(ctx, svc.db, &orphan)
	require.NoError(t, err)
	require.True(t, inserted)

	released, err := svc.ReleaseStale(ctx, heartbeat.Add(-time.Minute))
	require.NoError(t, err)
	assert.Nil(t, released, "fresh heartbeat keeps the slot")

	released, err = svc.ReleaseStale(ctx, heartbeat.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, released)
	assert.Equal(t, orphan.ID, released.ID)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestReleaseStaleKeepsOwnRunner(t *testing.T) {
	sender := newFakeSender()
	sender.gate = make(chan struct{})
	svc := newBroadcastService(t, sender, []int64{1, 2})
	ctx := context.Background()

	job, err := svc.Start(ctx, startRequest())
	require.NoError(t, err)

	released, err := svc.ReleaseStale(ctx, job.CreatedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, released)

	close(sender.gate)
	waitReport(t, sender)
	svc.Wait()
}

func TestHeartbeatAdvancesDuringSlowPage(t *testing.T) {
	sender := newFakeSender()
	sender.gate = make(chan struct{})
	svc := newBroadcastService(t, sender, []int64{1, 2})
	impl := svc.(*Service)
	impl.heartbeatEvery = 10 * time.Millisecond
	fake := impl.clock.(*clock.FakeClock)
	ctx := context.Background()

	job, err := svc.Start(ctx, startRequest())
	require.NoError(t, err)

	// the first page is blocked on the gate, so only the ticker can move heartbeat_at
	fake.Advance(20 * time.Minute)
	later := fake.Now()
	require.Eventually(t, func() bool {
		current, err := svc.Current(ctx)
		return err == nil && current != nil && current.HeartbeatAt.Equal(later)
	}, 2*time.Second, 10*time.Millisecond)

	released, err := impl.repo.DeleteStale(ctx, impl.db, job.ID, later.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.False(t, released)

	close(sender.gate)
	report := waitReport(t, sender)
	assert.Equal(t, 2, report.Sent)
	svc.Wait()
}
