package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TriageService wires the cheap path (pre-filter, sender type) and the
// expensive path (external analyzer) for a single message. Batch jobs
// do not go through this service; it serves the inline surfaces (SMTP
// gate, CLI) and any caller that needs one message classified
// end to end.
type TriageService struct {
	preFilter *PreFilter
	detector  *SenderTypeDetector
	analyzer  Analyzer
	store     Store
	logger    *zap.Logger
}

// NewTriageService creates a triage service. The analyzer and store may
// be nil for callers that only need the cheap path.
func NewTriageService(
	preFilter *PreFilter,
	detector *SenderTypeDetector,
	analyzer Analyzer,
	store Store,
	logger *zap.Logger,
) *TriageService {
	return &TriageService{
		preFilter: preFilter,
		detector:  detector,
		analyzer:  analyzer,
		store:     store,
		logger:    logger,
	}
}

// Triage is the combined outcome of one message's classification.
type Triage struct {
	PreFilter  PreFilterResult
	SenderType SenderTypeDetectionResult
	Analysis   *AnalysisOutcome
}

// ClassifyMessage runs the cheap path and, when the pre-filter does not
// skip, the expensive path. An analyzer failure is recorded on the
// message envelope and returned inside the triage outcome rather than
// as an error; classification ambiguity is never an error.
func (s *TriageService) ClassifyMessage(ctx context.Context, msg *Message) (*Triage, error) {
	learned, err := s.loadLearnedPatterns(ctx, msg.UserID)
	if err != nil {
		// The pre-filter degrades gracefully without learned patterns.
		s.logger.Warn("Failed to load learned patterns",
			zap.String("user_id", msg.UserID), zap.Error(err))
	}

	triage := &Triage{
		PreFilter:  s.preFilter.Classify(msg, learned),
		SenderType: s.detector.Detect(msg),
	}

	if triage.PreFilter.Skip() {
		s.applySkip(ctx, msg, triage.PreFilter)
		return triage, nil
	}

	if s.analyzer == nil {
		return triage, nil
	}

	outcome, err := s.analyzer.AnalyzeMessage(ctx, msg, s.loadUserContext(ctx, msg.UserID))
	if err != nil {
		s.logger.Error("Analyzer failed",
			zap.String("message_id", msg.ID),
			zap.String("sender", msg.Sender),
			zap.Error(err))
		if s.store != nil {
			if storeErr := s.store.SetAnalysisError(ctx, msg.ID, err.Error()); storeErr != nil {
				s.logger.Error("Failed to record analysis error",
					zap.String("message_id", msg.ID), zap.Error(storeErr))
			}
		}
		return triage, nil
	}

	triage.Analysis = outcome
	msg.Category = outcome.Category
	msg.Urgency = ClampScore(outcome.Urgency)
	msg.AnalysisError = ""
	analyzedAt := outcome.AnalyzedAt
	msg.AnalyzedAt = &analyzedAt

	if s.store != nil {
		if err := s.store.UpdateClassification(ctx, msg.ID, outcome.Category, msg.Urgency, analyzedAt); err != nil {
			return triage, fmt.Errorf("failed to persist classification: %w", err)
		}
	}
	return triage, nil
}

// applySkip folds a skip decision into the message envelope.
func (s *TriageService) applySkip(ctx context.Context, msg *Message, result PreFilterResult) {
	if result.Category == "" {
		return
	}
	msg.Category = result.Category
	now := time.Now()
	msg.AnalyzedAt = &now
	if s.store != nil {
		if err := s.store.UpdateClassification(ctx, msg.ID, result.Category, msg.Urgency, now); err != nil {
			s.logger.Error("Failed to persist pre-filter category",
				zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
}

func (s *TriageService) loadLearnedPatterns(ctx context.Context, userID string) ([]LearnedPattern, error) {
	if s.store == nil || userID == "" {
		return nil, nil
	}
	return s.store.ListLearnedPatterns(ctx, userID)
}

func (s *TriageService) loadUserContext(ctx context.Context, userID string) *UserContext {
	userCtx := &UserContext{UserID: userID}
	if s.store == nil || userID == "" {
		return userCtx
	}
	rels, err := s.store.ListRelationships(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load relationship context",
			zap.String("user_id", userID), zap.Error(err))
		return userCtx
	}
	userCtx.Relationships = rels
	return userCtx
}
