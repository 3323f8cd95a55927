package main

import (
	"context"
	"time"

	"Touchline/internal/biz"
	"Touchline/internal/conf"
	pkglog "Touchline/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// defaultRetentionSchedule runs daily at 03:30 (sec min hour dom month dow).
const defaultRetentionSchedule = "0 30 3 * * *"

// retentionJob runs PruneOldData on a cron schedule. It implements
// transport.Server so the Kratos app starts and stops it with the HTTP server.
type retentionJob struct {
	cron     *cron.Cron
	schedule string
	enabled  bool
	uc       *biz.FixtureUsecase
	log      *pkglog.LogHelper
}

func newRetentionJob(c *conf.Retention, uc *biz.FixtureUsecase, logger log.Logger) (*retentionJob, error) {
	j := &retentionJob{
		cron:     cron.New(cron.WithSeconds()),
		schedule: defaultRetentionSchedule,
		enabled:  true,
		uc:       uc,
		log:      pkglog.NewLogHelper(log.With(logger, "module", "cron/retention")),
	}
	if c != nil {
		j.enabled = c.Enabled
		if c.Schedule != "" {
			j.schedule = c.Schedule
		}
	}
	if !j.enabled {
		return j, nil
	}

	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *retentionJob) run() {
	j.log.Scheduler("starting retention task")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	j.uc.PruneOldData(ctx)
}

// Start implements transport.Server.
func (j *retentionJob) Start(context.Context) error {
	if !j.enabled {
		j.log.Scheduler("retention job disabled")
		return nil
	}
	j.cron.Start()
	j.log.Scheduler("retention job started", "schedule", j.schedule)
	return nil
}

// Stop implements transport.Server. It waits for a running prune to finish.
func (j *retentionJob) Stop(ctx context.Context) error {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
