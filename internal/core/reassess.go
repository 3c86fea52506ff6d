package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// ReassessmentConfig bounds one reassessment run.
type ReassessmentConfig struct {
	// Lookback is how far back pending items and work-relevant
	// messages are fetched.
	Lookback time.Duration
	// BatchSize is the page size for store reads.
	BatchSize int
	// WriteDelta is the minimum |new - old| before a score is
	// rewritten. This is the mechanism that makes re-invocation
	// idempotent; do not set it to zero in production.
	WriteDelta float64
}

// DefaultReassessmentConfig returns the standard bounds.
func DefaultReassessmentConfig() ReassessmentConfig {
	return ReassessmentConfig{
		Lookback:   14 * 24 * time.Hour,
		BatchSize:  100,
		WriteDelta: 0.5,
	}
}

// ReassessmentService recomputes urgency scores for all pending work
// items and work-relevant messages, persisting only material deltas.
type ReassessmentService struct {
	store  Store
	scorer *Scorer
	cfg    ReassessmentConfig
	logger *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewReassessmentService creates a reassessment service.
func NewReassessmentService(store Store, scorer *Scorer, cfg ReassessmentConfig, logger *zap.Logger) *ReassessmentService {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultReassessmentConfig().Lookback
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultReassessmentConfig().BatchSize
	}
	if cfg.WriteDelta <= 0 {
		cfg.WriteDelta = DefaultReassessmentConfig().WriteDelta
	}
	return &ReassessmentService{
		store:  store,
		scorer: scorer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// ReassessForUser recomputes scores for one user. A fetch error on one
// data source is recorded but does not stop the other source.
func (s *ReassessmentService) ReassessForUser(ctx context.Context, userID string) ReassessmentResult {
	start := s.now()
	result := ReassessmentResult{UserID: userID}

	// Load the relationship priority map once per run.
	multipliers, err := s.loadRelationshipMultipliers(ctx, userID)
	if err != nil {
		// Scores degrade to the neutral multiplier; not fatal.
		result.Errors = append(result.Errors, fmt.Sprintf("relationships: %v", err))
		s.logger.Warn("Failed to load relationship priorities, using neutral multipliers",
			zap.String("user_id", userID), zap.Error(err))
		multipliers = map[string]float64{}
	}

	since := start.Add(-s.cfg.Lookback)

	if err := s.reassessWorkItems(ctx, userID, since, multipliers, &result); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("work items: %v", err))
	}
	if err := s.reassessMessages(ctx, userID, since, &result); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("messages: %v", err))
	}

	result.Success = len(result.Errors) == 0
	result.DurationMS = s.now().Sub(start).Milliseconds()
	s.logger.Info("Reassessment complete",
		zap.String("user_id", userID),
		zap.Int("items_processed", result.ItemsProcessed),
		zap.Int("items_updated", result.ItemsUpdated),
		zap.Int("messages_processed", result.MessagesProcessed),
		zap.Int("messages_updated", result.MessagesUpdated),
		zap.Int("errors", len(result.Errors)),
		zap.Int64("duration_ms", result.DurationMS))
	return result
}

// ReassessAllUsers runs the per-user reassessment sequentially over
// every onboarded user. One user's failure is recorded as a failed
// result without aborting the run for the others.
func (s *ReassessmentService) ReassessAllUsers(ctx context.Context) ([]ReassessmentResult, error) {
	userIDs, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	results := make([]ReassessmentResult, 0, len(userIDs))
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		result := s.reassessUserSafely(ctx, userID)
		results = append(results, result)
	}
	return results, nil
}

// reassessUserSafely converts a panic inside one user's run into a
// failed result so sibling users still proceed.
func (s *ReassessmentService) reassessUserSafely(ctx context.Context, userID string) (result ReassessmentResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Reassessment panicked",
				zap.String("user_id", userID), zap.Any("panic", r))
			result = ReassessmentResult{
				UserID:  userID,
				Success: false,
				Errors:  []string{fmt.Sprintf("panic: %v", r)},
			}
		}
	}()
	return s.ReassessForUser(ctx, userID)
}

func (s *ReassessmentService) reassessWorkItems(ctx context.Context, userID string, since time.Time, multipliers map[string]float64, result *ReassessmentResult) error {
	now := s.now()
	for offset := 0; ; offset += s.cfg.BatchSize {
		items, err := s.store.ListPending(ctx, userID, since, s.cfg.BatchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list pending work items: %w", err)
		}
		if len(items) == 0 {
			return nil
		}

		for i := range items {
			item := &items[i]
			result.ItemsProcessed++

			newScore := s.scorer.Score(item.BaseUrgency, item.Deadline, item.CreatedAt, multipliers[item.RelationshipID], now)
			if math.Abs(newScore-item.Score) < s.cfg.WriteDelta {
				continue
			}
			if err := s.store.UpdateScore(ctx, item.ID, newScore); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("work item %s: %v", item.ID, err))
				continue
			}
			result.ItemsUpdated++
		}

		if len(items) < s.cfg.BatchSize {
			return nil
		}
	}
}

// reassessMessages walks the work-relevant message subset. Unlike work
// items, messages carry no immutable base urgency: the stored score is
// both input and output, so only the staleness factor applies and a
// write refreshes the staleness clock. That keeps an immediate re-run
// free of writes instead of compounding the boost.
func (s *ReassessmentService) reassessMessages(ctx context.Context, userID string, since time.Time, result *ReassessmentResult) error {
	now := s.now()
	for offset := 0; ; offset += s.cfg.BatchSize {
		msgs, err := s.store.ListWorkRelevant(ctx, userID, since, s.cfg.BatchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list work-relevant messages: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}

		for i := range msgs {
			msg := &msgs[i]
			result.MessagesProcessed++

			// analyzed-at is the staleness clock for messages; fall
			// back to the receipt date for never-analyzed ones.
			stalenessClock := msg.ReceivedAt
			if msg.AnalyzedAt != nil {
				stalenessClock = *msg.AnalyzedAt
			}

			newScore := s.scorer.Score(msg.Urgency, nil, stalenessClock, 1.0, now)
			if math.Abs(newScore-msg.Urgency) < s.cfg.WriteDelta {
				continue
			}
			if err := s.store.UpdateUrgency(ctx, msg.ID, newScore); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("message %s: %v", msg.ID, err))
				continue
			}
			result.MessagesUpdated++
		}

		if len(msgs) < s.cfg.BatchSize {
			return nil
		}
	}
}

// loadRelationshipMultipliers returns the user's multipliers keyed by
// relationship id.
func (s *ReassessmentService) loadRelationshipMultipliers(ctx context.Context, userID string) (map[string]float64, error) {
	rels, err := s.store.ListRelationships(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]float64, len(rels))
	for _, rel := range rels {
		byID[rel.ID] = rel.Tier.Multiplier()
	}
	return byID, nil
}
