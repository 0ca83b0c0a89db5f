package local

import (
	"context"
	"sync"
	"testing"
	"time"

	"fleetwatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	fired []model.StepDeadline
}

func (r *recorder) handle(_ context.Context, d model.StepDeadline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, d)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestDeadlineScheduler_Fires(t *testing.T) {
	s := NewDeadlineScheduler()
	rec := &recorder{}
	require.NoError(t, s.Start(rec.handle))

	d := model.StepDeadline{RunID: "run", DeviceID: "dev", StepIndex: 0}
	require.NoError(t, s.Schedule(context.Background(), d, 10*time.Millisecond))
	// duplicate arming is ignored
	require.NoError(t, s.Schedule(context.Background(), d, 10*time.Millisecond))
	assert.Equal(t, 1, s.Pending())

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Pending())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	s.Stop()
}

func TestDeadlineScheduler_StopDisarms(t *testing.T) {
	s := NewDeadlineScheduler()
	rec := &recorder{}
	require.NoError(t, s.Start(rec.handle))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Schedule(context.Background(), model.StepDeadline{RunID: "r", DeviceID: "d", StepIndex: i}, 50*time.Millisecond))
	}
	assert.Equal(t, 3, s.Pending())

	s.Stop()
	assert.Equal(t, 0, s.Pending())
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	assert.Error(t, s.Schedule(context.Background(), model.StepDeadline{RunID: "late"}, time.Millisecond))
}
