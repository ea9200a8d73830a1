package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/animegate/internal/broadcast/domain"
	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/config"
	obsmetrics "github.com/smallbiznis/animegate/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	releaseTimeout = 10 * time.Second
	// heartbeatInterval stays well under the scheduler's recovery threshold.
	heartbeatInterval = time.Minute
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Sender     domain.Sender
	Recipients domain.Recipients
	BotConfig  *config.BotConfigHolder
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	sender     domain.Sender
	recipients domain.Recipients
	botConfig  *config.BotConfigHolder
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics

	heartbeatEvery time.Duration

	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel map[snowflake.ID]context.CancelFunc
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("broadcast.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		sender:     p.Sender,
		recipients: p.Recipients,
		botConfig:  p.BotConfig,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
		cancel:     map[snowflake.ID]context.CancelFunc{},

		heartbeatEvery: heartbeatInterval,
	}
}

func (s *Service) Start(ctx context.Context, req domain.StartRequest) (domain.Job, error) {
	if req.AdminID == 0 {
		return domain.Job{}, domain.ErrInvalidAdmin
	}
	if req.SourceChat == 0 || req.SourceMessage == 0 {
		return domain.Job{}, domain.ErrInvalidSource
	}
	mode := req.Mode
	if mode != domain.ModeForward {
		mode = domain.ModeCopy
	}

	job := domain.NewJob(s.genID.Generate(), req.AdminID, req.SourceChat, req.SourceMessage, mode, s.clock.Now())
	inserted, err := s.repo.TryInsert(ctx, s.db, &job)
	if err != nil {
		return domain.Job{}, err
	}
	if !inserted {
		return domain.Job{}, domain.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancel[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx, job)

	s.log.Info("broadcast started",
		zap.String("job_id", job.ID.String()),
		zap.Int64("admin_id", job.AdminID),
		zap.String("mode", string(job.Mode)),
	)
	return job, nil
}

func (s *Service) Current(ctx context.Context) (*domain.Job, error) {
	return s.repo.Current(ctx, s.db)
}

func (s *Service) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cancel) == 0 {
		return domain.ErrNotRunning
	}
	for id, cancel := range s.cancel {
		s.log.Info("aborting broadcast", zap.String("job_id", id.String()))
		cancel()
	}
	return nil
}

func (s *Service) ReleaseStale(ctx context.Context, cutoff time.Time) (*domain.Job, error) {
	job, err := s.repo.Current(ctx, s.db)
	if err != nil || job == nil {
		return nil, err
	}
	s.mu.Lock()
	_, owned := s.cancel[job.ID]
	s.mu.Unlock()
	if owned {
		return nil, nil
	}
	released, err := s.repo.DeleteStale(ctx, s.db, job.ID, cutoff)
	if err != nil || !released {
		return nil, err
	}
	s.log.Warn("stale broadcast slot released",
		zap.String("job_id", job.ID.String()),
		zap.Time("heartbeat_at", job.HeartbeatAt),
	)
	return job, nil
}

func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context, job domain.Job) {
	started := time.Now()
	var sent, failed atomic.Int64

	defer s.wg.Done()
	defer s.release(ctx, job)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("broadcast runner panicked", zap.String("job_id", job.ID.String()), zap.Any("panic", r))
		}
	}()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		s.heartbeat(hbCtx, job.ID, &sent, &failed)
	}()
	defer func() {
		stopHeartbeat()
		<-hbDone
	}()

	cfg := s.botConfig.Get().Broadcast
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	var after int64
	for ctx.Err() == nil {
		ids, err := s.recipients.ListIDs(ctx, after, pageSize)
		if err != nil {
			s.log.Error("failed to list broadcast recipients", zap.String("job_id", job.ID.String()), zap.Error(err))
			break
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, id := range ids {
			recipient := id
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						failed.Add(1)
						s.log.Error("broadcast delivery panicked", zap.Int64("recipient", recipient), zap.Any("panic", r))
					}
				}()
				if err := s.sender.Deliver(gctx, job, recipient); err != nil {
					failed.Add(1)
					s.obsMetrics.RecordBroadcastMessage(gctx, "failed")
					s.log.Debug("broadcast delivery failed", zap.Int64("recipient", recipient), zap.Error(err))
					return nil
				}
				sent.Add(1)
				s.obsMetrics.RecordBroadcastMessage(gctx, "sent")
				return nil
			})
		}
		_ = g.Wait()

		after = ids[len(ids)-1]
		s.recordProgress(context.WithoutCancel(ctx), job.ID, &sent, &failed)
	}

	report := domain.Report{
		Sent:     int(sent.Load()),
		Failed:   int(failed.Load()),
		Aborted:  ctx.Err() != nil,
		Duration: time.Since(started),
	}
	s.log.Info("broadcast finished",
		zap.String("job_id", job.ID.String()),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Bool("aborted", report.Aborted),
	)
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	s.sender.Finished(reportCtx, job, report)
}

// heartbeat keeps heartbeat_at fresh while a slow page is still in flight.
func (s *Service) heartbeat(ctx context.Context, id snowflake.ID, sent, failed *atomic.Int64) {
	ticker := time.NewTicker(s.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.recordProgress(ctx, id, sent, failed)
		}
	}
}

func (s *Service) recordProgress(ctx context.Context, id snowflake.ID, sent, failed *atomic.Int64) {
	if err := s.repo.UpdateProgress(ctx, s.db, id, int(sent.Load()), int(failed.Load()), s.clock.Now()); err != nil {
		s.log.Warn("failed to record broadcast progress", zap.String("job_id", id.String()), zap.Error(err))
	}
}

func (s *Service) release(ctx context.Context, job domain.Job) {
	s.mu.Lock()
	if cancel, ok := s.cancel[job.ID]; ok {
		cancel()
		delete(s.cancel, job.ID)
	}
	s.mu.Unlock()

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.repo.Delete(releaseCtx, s.db, job.ID); err != nil {
		s.log.Error("failed to release broadcast slot", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}
