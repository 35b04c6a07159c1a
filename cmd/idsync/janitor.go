package main

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/idsync/pkg/async"
	"github.com/robfig/cron/v3"
)

// sweep purges expired in-process sessions and idle rate limit buckets,
// then refreshes the gauges
func (a *app) sweep(ctx context.Context) error {
	if a.memSessions != nil {
		if n := a.memSessions.DeleteExpired(); n > 0 {
			a.logger.WithField("removed", n).Debug("Purged expired sessions")
		}
		a.metrics.SessionsActive.Set(float64(a.memSessions.Len()))
	}
	if a.memLimiter != nil {
		a.memLimiter.Cleanup()
	}
	if a.observer != nil {
		a.metrics.ObserverTrackedKeys.Set(float64(a.observer.Len()))
	}
	if a.db != nil {
		a.metrics.UpdateDBStats(a.db.Stats())
	}
	return ctx.Err()
}

// startJanitor schedules sweep. The returned scheduler is already running.
func (a *app) startJanitor(schedule string) (*cron.Cron, error) {
	c := cron.New()
	job := func() {
		async.SafeGo(context.Background(), a.log, time.Minute, "session janitor", a.sweep)
	}
	if _, err := c.AddFunc(schedule, job); err != nil {
		return nil, fmt.Errorf("failed to schedule session janitor: %w", err)
	}
	c.Start()
	a.logger.WithField("schedule", schedule).Info("Session janitor started")
	return c, nil
}
