package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RetryConfig bounds one retry run.
type RetryConfig struct {
	// Cooldown is the minimum time since the last update before a
	// failed message becomes eligible again.
	Cooldown time.Duration
	// MaxErrorAge is how old a failure may be before it is abandoned.
	MaxErrorAge time.Duration
	// MaxPerRun caps how many candidates one run processes.
	MaxPerRun int
	// ItemDelay is the fixed pause between analyzer calls. This is a
	// deliberate backpressure choice to respect analyzer rate limits.
	ItemDelay time.Duration
}

// DefaultRetryConfig returns the standard retry bounds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Cooldown:    24 * time.Hour,
		MaxErrorAge: 7 * 24 * time.Hour,
		MaxPerRun:   25,
		ItemDelay:   500 * time.Millisecond,
	}
}

// RetryService resubmits messages whose analysis previously failed,
// bounded by an error-age window and a per-item cooldown. Candidates
// are processed oldest-failure-first, grouped by user to amortize
// context loading.
type RetryService struct {
	store    Store
	analyzer Analyzer
	cfg      RetryConfig
	logger   *zap.Logger

	// now is swappable for tests.
	now func() time.Time
	// sleep is swappable for tests; production uses a context-aware
	// delay between analyzer calls.
	sleep func(ctx context.Context, d time.Duration)
}

// NewRetryService creates a retry service.
func NewRetryService(store Store, analyzer Analyzer, cfg RetryConfig, logger *zap.Logger) *RetryService {
	defaults := DefaultRetryConfig()
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaults.Cooldown
	}
	if cfg.MaxErrorAge <= 0 {
		cfg.MaxErrorAge = defaults.MaxErrorAge
	}
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = defaults.MaxPerRun
	}
	if cfg.ItemDelay < 0 {
		cfg.ItemDelay = defaults.ItemDelay
	}
	return &RetryService{
		store:    store,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// RetryFailedAnalyses finds eligible failed messages and resubmits them
// to the analyzer sequentially. Aggregate success means zero failed
// items. A candidate-query failure is fatal and returns immediately
// with zero counts; everything below that scope is recovered locally.
func (s *RetryService) RetryFailedAnalyses(ctx context.Context) RetryJobResult {
	start := s.now()
	runID := uuid.NewString()
	result := RetryJobResult{}

	oldest := start.Add(-s.cfg.MaxErrorAge)
	newest := start.Add(-s.cfg.Cooldown)

	// Fetch unbounded so the found count reflects the full backlog;
	// processing below is still capped at MaxPerRun.
	candidates, err := s.store.ListRetryCandidates(ctx, oldest, newest, 0)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("candidate query: %v", err))
		result.DurationMS = s.now().Sub(start).Milliseconds()
		s.logger.Error("Retry run aborted, cannot query candidates",
			zap.String("run_id", runID), zap.Error(err))
		return result
	}

	result.EmailsFound = len(candidates)
	if len(candidates) > s.cfg.MaxPerRun {
		candidates = candidates[:s.cfg.MaxPerRun]
	}
	if len(candidates) == 0 {
		result.Success = true
		result.DurationMS = s.now().Sub(start).Milliseconds()
		s.logger.Info("Retry run found no candidates", zap.String("run_id", runID))
		return result
	}

	s.logger.Info("Retry run starting",
		zap.String("run_id", runID),
		zap.Int("found", result.EmailsFound),
		zap.Int("retrying", len(candidates)))

	// Group by user to load each user's context once. Group order
	// follows the oldest candidate per user, preserving
	// oldest-failure-first across the run.
	for _, group := range groupByUser(candidates) {
		s.retryGroup(ctx, group, &result)
	}

	result.Success = result.EmailsFailed == 0
	result.DurationMS = s.now().Sub(start).Milliseconds()
	s.logger.Info("Retry run complete",
		zap.String("run_id", runID),
		zap.Int("found", result.EmailsFound),
		zap.Int("retried", result.EmailsRetried),
		zap.Int("succeeded", result.EmailsSucceeded),
		zap.Int("failed", result.EmailsFailed),
		zap.Int64("duration_ms", result.DurationMS))
	return result
}

// retryGroup processes one user's candidates. A context-reset failure
// marks the whole group failed and skips analysis for it; a single
// analyzer failure is recorded and the loop continues.
func (s *RetryService) retryGroup(ctx context.Context, group userGroup, result *RetryJobResult) {
	userCtx, err := s.loadUserContext(ctx, group.userID)
	if err != nil {
		// Analyzer still runs, just without relationship context.
		s.logger.Warn("Failed to load user context for retry group",
			zap.String("user_id", group.userID), zap.Error(err))
		userCtx = &UserContext{UserID: group.userID}
	}

	// Clear the error/analyzed fields for the whole group so the
	// analyzer treats these messages as fresh.
	ids := make([]string, len(group.messages))
	for i := range group.messages {
		ids[i] = group.messages[i].ID
	}
	if err := s.store.ResetAnalysisState(ctx, ids); err != nil {
		for _, id := range ids {
			result.Errors = append(result.Errors, fmt.Sprintf("message %s: reset failed: %v", id, err))
		}
		result.EmailsFailed += len(ids)
		s.logger.Error("Failed to reset analysis state for group",
			zap.String("user_id", group.userID),
			zap.Int("messages", len(ids)),
			zap.Error(err))
		return
	}

	for i := range group.messages {
		msg := &group.messages[i]
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("message %s: %v", msg.ID, ctx.Err()))
			result.EmailsFailed++
			continue
		}

		result.EmailsRetried++
		if err := s.retryOne(ctx, msg, userCtx); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("message %s: %v", msg.ID, err))
			result.EmailsFailed++
		} else {
			result.EmailsSucceeded++
		}

		// Fixed inter-item delay between analyzer calls.
		if i < len(group.messages)-1 && s.cfg.ItemDelay > 0 {
			s.sleep(ctx, s.cfg.ItemDelay)
		}
	}
}

func (s *RetryService) retryOne(ctx context.Context, msg *Message, userCtx *UserContext) error {
	outcome, err := s.analyzer.AnalyzeMessage(ctx, msg, userCtx)
	if err != nil {
		// Back to the error state; eligible again after the next
		// cooldown.
		if storeErr := s.store.SetAnalysisError(ctx, msg.ID, err.Error()); storeErr != nil {
			s.logger.Error("Failed to record analysis error",
				zap.String("message_id", msg.ID), zap.Error(storeErr))
		}
		return fmt.Errorf("analyzer: %w", err)
	}

	if err := s.store.UpdateClassification(ctx, msg.ID, outcome.Category, ClampScore(outcome.Urgency), outcome.AnalyzedAt); err != nil {
		return fmt.Errorf("failed to persist classification: %w", err)
	}

	s.logger.Debug("Retried analysis succeeded",
		zap.String("message_id", msg.ID),
		zap.String("category", string(outcome.Category)),
		zap.Float64("urgency", outcome.Urgency),
		zap.String("model", outcome.ModelUsed))
	return nil
}

func (s *RetryService) loadUserContext(ctx context.Context, userID string) (*UserContext, error) {
	rels, err := s.store.ListRelationships(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserContext{UserID: userID, Relationships: rels}, nil
}

type userGroup struct {
	userID   string
	messages []Message
}

// groupByUser buckets candidates per user, preserving the oldest-first
// input order within and across groups.
func groupByUser(msgs []Message) []userGroup {
	index := make(map[string]int)
	groups := make([]userGroup, 0)
	for _, msg := range msgs {
		i, ok := index[msg.UserID]
		if !ok {
			i = len(groups)
			index[msg.UserID] = i
			groups = append(groups, userGroup{userID: msg.UserID})
		}
		groups[i].messages = append(groups[i].messages, msg)
	}
	return groups
}

// sleepCtx pauses for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
