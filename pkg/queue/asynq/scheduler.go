package asynq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/config"
	"fleetwatch/pkg/interfaces"
	"fleetwatch/pkg/logger"

	"github.com/hibiken/asynq"
)

const (
	TypeStepDeadline = "step:deadline"
	deadlineQueue    = "deadlines"
	deadlineMaxRetry = 3
)

// DeadlineScheduler step deadlines as delayed asynq tasks, shared by every server instance
type DeadlineScheduler struct {
	client  *asynq.Client
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler interfaces.DeadlineHandler
}

var _ interfaces.DeadlineScheduler = (*DeadlineScheduler)(nil)

// NewDeadlineScheduler creates the asynq client and worker server
func NewDeadlineScheduler(redisCfg config.RedisConfig, concurrency int) *DeadlineScheduler {
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				deadlineQueue: 1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Second
			},
			Logger:   asynqLogger{},
			LogLevel: asynq.WarnLevel,
		},
	)

	return &DeadlineScheduler{
		client: asynq.NewClient(redisOpt),
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

// deadlineTaskID one task per step; rescheduling the same step is a no-op
func deadlineTaskID(d model.StepDeadline) string {
	return fmt.Sprintf("deadline:%s:%s:%d", d.RunID, d.DeviceID, d.StepIndex)
}

func newDeadlineTask(d model.StepDeadline, delay time.Duration) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal step deadline: %w", err)
	}
	opts := []asynq.Option{
		asynq.TaskID(deadlineTaskID(d)),
		asynq.Queue(deadlineQueue),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(deadlineMaxRetry),
		asynq.Retention(time.Hour),
	}
	return asynq.NewTask(TypeStepDeadline, payload), opts, nil
}

// Schedule enqueues a delayed deadline task
func (s *DeadlineScheduler) Schedule(ctx context.Context, d model.StepDeadline, delay time.Duration) error {
	task, opts, err := newDeadlineTask(d, delay)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("failed to enqueue step deadline: %w", err)
	}
	logger.DebugCtx(ctx, "step deadline scheduled, run: %s, device: %s, step: %d, in: %v",
		d.RunID, d.DeviceID, d.StepIndex, delay)
	return nil
}

// Start begins processing due deadlines
func (s *DeadlineScheduler) Start(handler interfaces.DeadlineHandler) error {
	s.handler = handler
	s.mux.HandleFunc(TypeStepDeadline, s.processTask)
	logger.InfoCtx(context.Background(), "starting step deadline worker")
	return s.server.Start(s.mux)
}

func (s *DeadlineScheduler) processTask(ctx context.Context, task *asynq.Task) error {
	var d model.StepDeadline
	if err := json.Unmarshal(task.Payload(), &d); err != nil {
		// a malformed payload never becomes valid
		return fmt.Errorf("invalid step deadline payload: %v: %w", err, asynq.SkipRetry)
	}
	if s.handler == nil {
		return errors.New("step deadline handler not registered")
	}
	return s.handler(ctx, d)
}

// Stop shuts the worker down and closes the client
func (s *DeadlineScheduler) Stop() {
	logger.InfoCtx(context.Background(), "stopping step deadline worker")
	s.server.Shutdown()
	if err := s.client.Close(); err != nil {
		logger.WarnCtx(context.Background(), "failed to close asynq client: %v", err)
	}
}

// asynqLogger routes asynq's internal logs through zap
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logger.DebugCtx(context.Background(), "asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { logger.InfoCtx(context.Background(), "asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { logger.WarnCtx(context.Background(), "asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { logger.ErrorCtx(context.Background(), "asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { logger.FatalCtx(context.Background(), "asynq: %s", fmt.Sprint(args...)) }
