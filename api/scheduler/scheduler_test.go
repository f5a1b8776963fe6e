package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) Sweep(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep called without a deadline")
	}
	return 2, c.err
}

func TestScheduler_RunsSweepOnSchedule(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, "@every 1s", time.Second)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, "not a schedule", 0)
	assert.Error(t, s.Start())
}

func TestScheduler_SweepErrorIsLogged(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("store down")}
	s := NewScheduler(sweeper, "@every 1h", 0)

	s.sweepExpiredInvitations()
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

type deadlineSweeper struct {
	deadline time.Time
}

func (d *deadlineSweeper) Sweep(ctx context.Context) (int64, error) {
	d.deadline, _ = ctx.Deadline()
	return 0, nil
}

func TestScheduler_SweepUsesConfiguredTimeout(t *testing.T) {
	sweeper := &deadlineSweeper{}
	s := NewScheduler(sweeper, "@every 1h", 3*time.Second)

	s.sweepExpiredInvitations()
	assert.WithinDuration(t, time.Now().Add(3*time.Second), sweeper.deadline, time.Second)
}
