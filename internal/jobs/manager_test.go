package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"fleetwatch/pkg/lock"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name     string
	interval time.Duration
	skip     bool
	runs     atomic.Int32
}

func (j *countingJob) Name() string            { return j.name }
func (j *countingJob) Interval() time.Duration { return j.interval }
func (j *countingJob) SkipInitialRun() bool    { return j.skip }
func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestManager_RunsImmediatelyAndOnTicks(t *testing.T) {
	m := NewManager(context.Background())
	job := &countingJob{name: "tick", interval: 20 * time.Millisecond}
	m.Register(job)
	m.Register(nil)
	assert.Equal(t, []string{"tick"}, m.Jobs())

	m.Start()
	m.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Wait()
	stopped := job.runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, job.runs.Load())
}

func TestManager_DelayedJobSkipsInitialRun(t *testing.T) {
	m := NewManager(context.Background())
	job := &countingJob{name: "delayed", interval: time.Hour, skip: true}
	m.Register(job)
	m.Start()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), job.runs.Load())

	m.Stop()
	m.Wait()
}

func TestWithLock_SkipsWhenHeldElsewhere(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	holder := lock.NewRedisDistributedLock(client, "fleetwatch:lock:retention")
	ok, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	job := &countingJob{name: "retention", interval: time.Hour}
	wrapped := WithLock(job, lock.NewRedisDistributedLock(client, "fleetwatch:lock:retention"))

	require.NoError(t, wrapped.Run(ctx))
	assert.Equal(t, int32(0), job.runs.Load())

	require.NoError(t, holder.Unlock(ctx))
	require.NoError(t, wrapped.Run(ctx))
	assert.Equal(t, int32(1), job.runs.Load())
	assert.Equal(t, "retention", wrapped.Name())
}

func TestWithLock_NilLockReturnsJob(t *testing.T) {
	job := &countingJob{name: "plain"}
	assert.Same(t, Job(job), WithLock(job, nil))
}
