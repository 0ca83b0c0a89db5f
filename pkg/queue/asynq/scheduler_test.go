package asynq

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleetwatch/internal/model"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeadlineTask(t *testing.T) {
	d := model.StepDeadline{RunID: "run-1", DeviceID: "dev-1", StepIndex: 2}

	task, opts, err := newDeadlineTask(d, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, TypeStepDeadline, task.Type())
	assert.JSONEq(t, `{"runId":"run-1","deviceId":"dev-1","stepIndex":2}`, string(task.Payload()))
	assert.Equal(t, "deadline:run-1:dev-1:2", deadlineTaskID(d))

	var types []asynq.OptionType
	for _, o := range opts {
		types = append(types, o.Type())
	}
	assert.Contains(t, types, asynq.TaskIDOpt)
	assert.Contains(t, types, asynq.ProcessInOpt)
	assert.Contains(t, types, asynq.QueueOpt)
}

func TestProcessTask(t *testing.T) {
	var got model.StepDeadline
	s := &DeadlineScheduler{handler: func(_ context.Context, d model.StepDeadline) error {
		got = d
		return nil
	}}

	task, _, err := newDeadlineTask(model.StepDeadline{RunID: "r", DeviceID: "d", StepIndex: 1}, time.Second)
	require.NoError(t, err)
	require.NoError(t, s.processTask(context.Background(), task))
	assert.Equal(t, model.StepDeadline{RunID: "r", DeviceID: "d", StepIndex: 1}, got)
}

func TestProcessTask_MalformedPayloadSkipsRetry(t *testing.T) {
	s := &DeadlineScheduler{handler: func(context.Context, model.StepDeadline) error { return nil }}

	err := s.processTask(context.Background(), asynq.NewTask(TypeStepDeadline, []byte("{")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
