package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
	"fleetwatch/pkg/logger"
)

// DeadlineScheduler in-process step deadlines; pending deadlines are lost on restart
type DeadlineScheduler struct {
	mu      sync.Mutex
	timers  map[model.StepDeadline]*time.Timer
	handler interfaces.DeadlineHandler
	stopped bool
	wg      sync.WaitGroup
}

var _ interfaces.DeadlineScheduler = (*DeadlineScheduler)(nil)

func NewDeadlineScheduler() *DeadlineScheduler {
	return &DeadlineScheduler{timers: make(map[model.StepDeadline]*time.Timer)}
}

// Schedule arms a timer; an already armed deadline is left untouched
func (s *DeadlineScheduler) Schedule(ctx context.Context, d model.StepDeadline, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return fmt.Errorf("deadline scheduler stopped")
	}
	if _, ok := s.timers[d]; ok {
		return nil
	}
	s.timers[d] = time.AfterFunc(delay, func() { s.fire(d) })
	return nil
}

func (s *DeadlineScheduler) fire(d model.StepDeadline) {
	s.mu.Lock()
	delete(s.timers, d)
	handler := s.handler
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if handler == nil {
		logger.WarnCtx(context.Background(), "step deadline fired before a handler was registered, run: %s", d.RunID)
		return
	}
	ctx := logger.WithTraceID(context.Background(), d.RunID)
	if err := handler(ctx, d); err != nil {
		logger.WarnCtx(ctx, "step deadline handler failed, device: %s, step: %d: %v", d.DeviceID, d.StepIndex, err)
	}
}

// Start registers the handler; timers are already running
func (s *DeadlineScheduler) Start(handler interfaces.DeadlineHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	return nil
}

// Pending number of armed deadlines
func (s *DeadlineScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer and waits for running handlers
func (s *DeadlineScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for d, t := range s.timers {
		t.Stop()
		delete(s.timers, d)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
