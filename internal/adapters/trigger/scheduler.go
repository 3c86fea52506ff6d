package trigger

import (
	"context"
	"time"

	"github.com/inboxkit/mail-triage/internal/core"
	"go.uber.org/zap"
)

// Scheduler runs the maintenance jobs on fixed intervals. Each interval
// can be disabled by setting it to zero.
type Scheduler struct {
	reassessor       *core.ReassessmentService
	retrier          *core.RetryService
	reassessInterval time.Duration
	retryInterval    time.Duration
	logger           *zap.Logger
	stopCh           chan struct{}
	doneCh           chan struct{}
}

// NewScheduler creates a scheduler for the two maintenance jobs
func NewScheduler(
	reassessor *core.ReassessmentService,
	retrier *core.RetryService,
	reassessInterval time.Duration,
	retryInterval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		reassessor:       reassessor,
		retrier:          retrier,
		reassessInterval: reassessInterval,
		retryInterval:    retryInterval,
		logger:           logger,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Start runs the scheduling loop. It blocks until Stop is called.
func (s *Scheduler) Start() error {
	defer close(s.doneCh)

	reassessTick := newTicker(s.reassessInterval)
	retryTick := newTicker(s.retryInterval)
	defer reassessTick.Stop()
	defer retryTick.Stop()

	s.logger.Info("Starting job scheduler",
		zap.Duration("reassess_interval", s.reassessInterval),
		zap.Duration("retry_interval", s.retryInterval))

	for {
		select {
		case <-s.stopCh:
			return nil
		case <-reassessTick.C:
			results, err := s.reassessor.ReassessAllUsers(context.Background())
			if err != nil {
				s.logger.Error("Scheduled reassessment failed", zap.Error(err))
				continue
			}
			updated := 0
			for _, r := range results {
				updated += r.ItemsUpdated + r.MessagesUpdated
			}
			s.logger.Info("Scheduled reassessment complete",
				zap.Int("users", len(results)),
				zap.Int("updated", updated))
		case <-retryTick.C:
			result := s.retrier.RetryFailedAnalyses(context.Background())
			s.logger.Info("Scheduled retry complete",
				zap.Int("found", result.EmailsFound),
				zap.Int("succeeded", result.EmailsSucceeded),
				zap.Int("failed", result.EmailsFailed))
		}
	}
}

// Stop signals the loop to exit and waits for it to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	close(s.stopCh)
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newTicker returns a ticker that never fires when the interval is not
// positive
func newTicker(d time.Duration) *time.Ticker {
	if d <= 0 {
		t := time.NewTicker(time.Hour)
		t.Stop()
		return t
	}
	return time.NewTicker(d)
}
