package main

import (
	"context"
	"time"

	"fleetwatch/internal/hub"
	"fleetwatch/internal/jobs"
	"fleetwatch/pkg/lock"
	"fleetwatch/pkg/logger"

	"github.com/go-redis/redis/v8"
)

func (app *Application) initJobs() error {
	manager := jobs.NewManager(app.ctx)

	// Without Redis the locks fall back to single-instance mode
	var redisClient *redis.Client
	if app.redisClient != nil {
		redisClient = app.redisClient.GetClient()
	}
	retention := app.config.Retention

	// Every instance pings its own agents, so keepalive is not locked
	manager.Register(newKeepaliveJob(app.config.Server.AgentPingInterval, app.hub))

	manager.Register(jobs.WithLock(
		newRetentionJob("metrics-retention", retention.Interval, retention.MetricsDays, app.metricsService.Cleanup),
		lock.NewRedisDistributedLock(redisClient, "fleetwatch:lock:metrics-retention")))
	manager.Register(jobs.WithLock(
		newRetentionJob("alert-retention", retention.Interval, retention.ResolvedAlertDays, app.alertService.Cleanup),
		lock.NewRedisDistributedLock(redisClient, "fleetwatch:lock:alert-retention")))
	manager.Register(jobs.WithLock(
		newRetentionJob("run-retention", retention.Interval, retention.RunDays, app.dispatchService.Cleanup),
		lock.NewRedisDistributedLock(redisClient, "fleetwatch:lock:run-retention")))

	app.jobsManager = manager
	return nil
}

// keepaliveJob sends an application-level ping to every connected agent.
type keepaliveJob struct {
	interval time.Duration
	hub      *hub.Hub
}

func newKeepaliveJob(interval time.Duration, h *hub.Hub) jobs.Job {
	return &keepaliveJob{interval: interval, hub: h}
}

func (j *keepaliveJob) Name() string {
	return "agent-keepalive"
}

func (j *keepaliveJob) Interval() time.Duration {
	return j.interval
}

func (j *keepaliveJob) Run(ctx context.Context) error {
	if n := j.hub.PingAgents(ctx); n > 0 {
		logger.DebugCtx(ctx, "pinged %d agents", n)
	}
	return nil
}

func (j *keepaliveJob) SkipInitialRun() bool {
	return true
}

// retentionJob deletes history older than a number of days.
type retentionJob struct {
	name     string
	interval time.Duration
	days     int
	cleanup  func(ctx context.Context, days int) (int64, error)
}

func newRetentionJob(name string, interval time.Duration, days int, cleanup func(ctx context.Context, days int) (int64, error)) jobs.Job {
	return &retentionJob{name: name, interval: interval, days: days, cleanup: cleanup}
}

func (j *retentionJob) Name() string {
	return j.name
}

func (j *retentionJob) Interval() time.Duration {
	return j.interval
}

func (j *retentionJob) Run(ctx context.Context) error {
	deleted, err := j.cleanup(ctx, j.days)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.InfoCtx(ctx, "%s removed %d records older than %d days", j.name, deleted, j.days)
	}
	return nil
}
