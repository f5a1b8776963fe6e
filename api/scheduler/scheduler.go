package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/esg-identity-api/api"
)

// Sweeper expires stale pending invitations
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Scheduler runs the invitation expiry sweep on a cron schedule so stored statuses
// stay current between writes.
type Scheduler struct {
	cron       *cron.Cron
	sweeper    Sweeper
	schedule   string
	timeout    time.Duration
	instanceID string
}

// NewScheduler creates a new scheduler instance. Each sweep runs under timeout.
func NewScheduler(sweeper Sweeper, schedule string, timeout time.Duration) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		sweeper:    sweeper,
		schedule:   schedule,
		timeout:    timeout,
		instanceID: instanceID,
	}
}

// Start registers the sweep job and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweepExpiredInvitations); err != nil {
		return fmt.Errorf("register invitation sweep %q: %w", s.schedule, err)
	}

	s.cron.Start()
	zap.S().Infow("invitation sweep scheduler started", "schedule", s.schedule, "instance", s.instanceID)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("invitation sweep scheduler stopped")
}

// sweepExpiredInvitations runs on several instances at once without harm: the sweep
// is an idempotent conditional update.
func (s *Scheduler) sweepExpiredInvitations() {
	ctx, cancel := api.WithSweepTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.sweeper.Sweep(ctx)
	if err != nil {
		zap.S().Errorw("scheduled invitation sweep failed", "instance", s.instanceID, "error", err)
		return
	}
	zap.S().Debugw("scheduled invitation sweep finished", "instance", s.instanceID, "expired", n)
}
