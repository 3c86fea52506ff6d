package core

import (
	"context"
	"time"
)

// Analyzer defines the interface for the external content classifier.
type Analyzer interface {
	// AnalyzeMessage runs the expensive classification pass for one
	// message with the user's relationship context.
	AnalyzeMessage(ctx context.Context, msg *Message, userCtx *UserContext) (*AnalysisOutcome, error)
}

// MessageRepository defines persistence reads/writes over the message
// classification envelope.
type MessageRepository interface {
	// ListWorkRelevant returns messages in the work-relevant categories
	// received at or after since, paged by limit/offset.
	ListWorkRelevant(ctx context.Context, userID string, since time.Time, limit, offset int) ([]Message, error)

	// ListRetryCandidates returns messages with an analysis error set,
	// never analyzed, whose last update falls strictly inside
	// (oldest, newest], ordered oldest-first. A limit <= 0 means
	// unbounded.
	ListRetryCandidates(ctx context.Context, oldest, newest time.Time, limit int) ([]Message, error)

	// UpdateClassification writes the envelope after a successful
	// analysis.
	UpdateClassification(ctx context.Context, id string, category Category, urgency float64, analyzedAt time.Time) error

	// UpdateUrgency rewrites the urgency score and refreshes the
	// analyzed-at stamp, which doubles as the staleness clock.
	UpdateUrgency(ctx context.Context, id string, urgency float64) error

	// SetAnalysisError records a failed analysis attempt.
	SetAnalysisError(ctx context.Context, id string, errMsg string) error

	// ResetAnalysisState clears the error and analyzed-at fields for a
	// group of messages so the analyzer treats them as fresh.
	ResetAnalysisState(ctx context.Context, ids []string) error
}

// WorkItemRepository defines persistence over work items.
type WorkItemRepository interface {
	// ListPending returns pending items created at or after since,
	// paged by limit/offset.
	ListPending(ctx context.Context, userID string, since time.Time, limit, offset int) ([]WorkItem, error)

	// UpdateScore rewrites an item's urgency score.
	UpdateScore(ctx context.Context, id string, score float64) error
}

// RelationshipRepository defines reads over user-managed relationship
// priorities.
type RelationshipRepository interface {
	// ListRelationships returns all relationship priorities for the
	// user.
	ListRelationships(ctx context.Context, userID string) ([]RelationshipPriority, error)
}

// UserRepository defines reads over onboarded users.
type UserRepository interface {
	// ListActive returns the ids of all onboarded users.
	ListActive(ctx context.Context) ([]string, error)
}

// PatternRepository defines reads over per-user learned sender patterns.
type PatternRepository interface {
	// ListLearnedPatterns returns the user's learned sender patterns.
	ListLearnedPatterns(ctx context.Context, userID string) ([]LearnedPattern, error)
}

// InsightRepository defines reads over precomputed summaries consumed
// by the action suggestion engine.
type InsightRepository interface {
	// CategorySummaries returns per-category rollups for the user.
	CategorySummaries(ctx context.Context, userID string) ([]CategorySummary, error)

	// RelationshipInsights returns correspondent observations for the
	// user.
	RelationshipInsights(ctx context.Context, userID string) ([]RelationshipInsight, error)
}

// Store aggregates every repository a triage backend implements.
type Store interface {
	MessageRepository
	WorkItemRepository
	RelationshipRepository
	UserRepository
	PatternRepository
	InsightRepository

	// Close releases the backing resources.
	Close() error
}
