package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/animegate/internal/audit/domain"
	broadcastdomain "github.com/smallbiznis/animegate/internal/broadcast/domain"
	"github.com/smallbiznis/animegate/internal/clock"
	obsmetrics "github.com/smallbiznis/animegate/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/animegate/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobVIPExpiry         = "vip_expiry"
	JobBroadcastRecovery = "broadcast_recovery"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	Log             *zap.Logger
	SubscriptionSvc subscriptiondomain.Service
	BroadcastSvc    broadcastdomain.Service
	AuditSvc        auditdomain.Service `optional:"true"`
	GenID           *snowflake.Node
	Clock           clock.Clock
	Config          Config `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	genID           *snowflake.Node
	clock           clock.Clock
	subscriptionSvc subscriptiondomain.Service
	broadcastSvc    broadcastdomain.Service
	auditSvc        auditdomain.Service
}

type auditEvent struct {
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.SubscriptionSvc == nil || p.BroadcastSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             cfg,
		genID:           p.GenID,
		clock:           p.Clock,
		subscriptionSvc: p.SubscriptionSvc,
		broadcastSvc:    p.BroadcastSvc,
		auditSvc:        p.AuditSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout, the next run picks up the rest
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobVIPExpiry, s.isJobEnabled(JobVIPExpiry), func(ctx context.Context) error {
			return s.runJob(ctx, JobVIPExpiry, s.cfg.BatchSize, 30*time.Second, s.VIPExpiryJob)
		}},
		{JobBroadcastRecovery, s.isJobEnabled(JobBroadcastRecovery), func(ctx context.Context) error {
			return s.runJob(ctx, JobBroadcastRecovery, 1, 10*time.Second, s.BroadcastRecoveryJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// VIPExpiryJob subtracts elapsed whole days from every grant and demotes
// users whose grant ran out. Batches repeat until nothing is due.
func (s *Scheduler) VIPExpiryJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobVIPExpiry, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	schedMetrics := obsmetrics.Scheduler()

	for {
		if ctx.Err() != nil {
			// due grants may remain; the next tick resumes from accounted_at
			schedMetrics.IncBatchDeferred(JobVIPExpiry, obsmetrics.SchedulerBatchDeferredReasonDeadline)
			return ctx.Err()
		}

		result, err := s.subscriptionSvc.ExpireDue(ctx, now, s.cfg.BatchSize)
		schedMetrics.ObserveDBLockWait(obsmetrics.LockResourceVipGrantsForExpiry, result.LockWait)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.vip_expiry.failed", JobVIPExpiry, err)
			return err
		}
		if result.Processed == 0 {
			break
		}

		run.AddProcessed(result.Processed)
		schedMetrics.AddBatchProcessed(JobVIPExpiry, "vip_grants", result.Processed)
		for i := 0; i < result.Decremented; i++ {
			schedMetrics.IncGrantTransition(obsmetrics.GrantTransitionDecremented)
		}
		for i := 0; i < result.Expired; i++ {
			schedMetrics.IncGrantTransition(obsmetrics.GrantTransitionExpired)
		}
		if result.Expired > 0 {
			s.logger(ctx).Info("scheduler.vip_expiry.batch",
				zap.Int("processed", result.Processed),
				zap.Int("expired", result.Expired),
			)
		}
		if result.Processed < s.cfg.BatchSize {
			break
		}
	}

	return nil
}

// BroadcastRecoveryJob frees the broadcast slot when its runner stopped
// reporting progress, so a crashed process does not block broadcasts forever.
func (s *Scheduler) BroadcastRecoveryJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobBroadcastRecovery, 1)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	cutoff := s.clock.Now().Add(-s.cfg.RecoveryThreshold)

	job, err := s.broadcastSvc.ReleaseStale(ctx, cutoff)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.broadcast_recovery.failed", JobBroadcastRecovery, err)
		return err
	}
	if job == nil {
		return nil
	}

	run.AddProcessed(1)
	obsmetrics.Scheduler().AddBatchProcessed(JobBroadcastRecovery, "broadcast_jobs", 1)
	s.emitAuditEvent(ctx, auditEvent{
		Action:     auditdomain.ActionBroadcastFreed,
		TargetType: "broadcast_job",
		TargetID:   job.ID.String(),
		Metadata: map[string]any{
			"admin_id":     job.AdminID,
			"sent":         job.Sent,
			"failed":       job.Failed,
			"heartbeat_at": job.HeartbeatAt.Format(time.RFC3339),
		},
	})
	return nil
}

func (s *Scheduler) emitAuditEvent(ctx context.Context, event auditEvent) {
	if s.auditSvc == nil {
		return
	}
	actorID := "scheduler"
	targetID := event.TargetID
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeSystem), &actorID, event.Action, event.TargetType, &targetID, event.Metadata); err != nil {
		s.logger(ctx).Warn("scheduler.audit.failed", zap.String("action", event.Action), zap.Error(err))
	}
}
