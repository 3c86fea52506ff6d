package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/inboxkit/mail-triage/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// MemoryStore is an in-memory implementation of the Store interface.
// It is the default backend for local runs and doubles as the test
// double for the job services.
type MemoryStore struct {
	mu            sync.RWMutex
	messages      map[string]*core.Message
	workItems     map[string]*core.WorkItem
	relationships map[string][]core.RelationshipPriority
	patterns      map[string][]core.LearnedPattern
	summaries     map[string][]core.CategorySummary
	insights      map[string][]core.RelationshipInsight
	users         []string
	logger        *zap.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		messages:      make(map[string]*core.Message),
		workItems:     make(map[string]*core.WorkItem),
		relationships: make(map[string][]core.RelationshipPriority),
		patterns:      make(map[string][]core.LearnedPattern),
		summaries:     make(map[string][]core.CategorySummary),
		insights:      make(map[string][]core.RelationshipInsight),
		logger:        logger,
	}
}

// AddUser registers an onboarded user
func (s *MemoryStore) AddUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.users {
		if id == userID {
			return
		}
	}
	s.users = append(s.users, userID)
}

// AddMessage stores a synced message
func (s *MemoryStore) AddMessage(msg core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := msg
	s.messages[msg.ID] = &copied
}

// AddWorkItem stores a work item
func (s *MemoryStore) AddWorkItem(item core.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := item
	s.workItems[item.ID] = &copied
}

// AddRelationship stores a relationship priority for its user
func (s *MemoryStore) AddRelationship(rel core.RelationshipPriority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[rel.UserID] = append(s.relationships[rel.UserID], rel)
}

// AddLearnedPattern stores a learned sender pattern for its user
func (s *MemoryStore) AddLearnedPattern(p core.LearnedPattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[p.UserID] = append(s.patterns[p.UserID], p)
}

// AddCategorySummary stores a per-category rollup for a user
func (s *MemoryStore) AddCategorySummary(userID string, summary core.CategorySummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[userID] = append(s.summaries[userID], summary)
}

// AddRelationshipInsight stores a correspondent observation for a user
func (s *MemoryStore) AddRelationshipInsight(userID string, insight core.RelationshipInsight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights[userID] = append(s.insights[userID], insight)
}

// GetMessage returns a copy of the stored message
func (s *MemoryStore) GetMessage(id string) (core.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return core.Message{}, false
	}
	return *msg, true
}

// GetWorkItem returns a copy of the stored work item
func (s *MemoryStore) GetWorkItem(id string) (core.WorkItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.workItems[id]
	if !ok {
		return core.WorkItem{}, false
	}
	return *item, true
}

// ListWorkRelevant returns messages in the work-relevant categories
// received at or after since, paged by limit/offset
func (s *MemoryStore) ListWorkRelevant(ctx context.Context, userID string, since time.Time, limit, offset int) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []core.Message
	for _, msg := range s.messages {
		if msg.UserID != userID || msg.ReceivedAt.Before(since) {
			continue
		}
		if !isWorkRelevant(msg.Category) {
			continue
		}
		matched = append(matched, *msg)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ReceivedAt.Equal(matched[j].ReceivedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].ReceivedAt.Before(matched[j].ReceivedAt)
	})
	return page(matched, limit, offset), nil
}

// ListRetryCandidates returns never-analyzed messages with an analysis
// error whose last update falls strictly inside (oldest, newest],
// oldest-first
func (s *MemoryStore) ListRetryCandidates(ctx context.Context, oldest, newest time.Time, limit int) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []core.Message
	for _, msg := range s.messages {
		if msg.AnalysisError == "" || msg.AnalyzedAt != nil {
			continue
		}
		if !msg.UpdatedAt.After(oldest) || msg.UpdatedAt.After(newest) {
			continue
		}
		matched = append(matched, *msg)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// UpdateClassification writes the envelope after a successful analysis
func (s *MemoryStore) UpdateClassification(ctx context.Context, id string, category core.Category, urgency float64, analyzedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Category = category
	msg.Urgency = urgency
	msg.AnalysisError = ""
	at := analyzedAt
	msg.AnalyzedAt = &at
	msg.UpdatedAt = time.Now()
	return nil
}

// UpdateUrgency rewrites the urgency score and refreshes the
// analyzed-at stamp
func (s *MemoryStore) UpdateUrgency(ctx context.Context, id string, urgency float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	msg.Urgency = urgency
	msg.AnalyzedAt = &now
	msg.UpdatedAt = now
	return nil
}

// SetAnalysisError records a failed analysis attempt
func (s *MemoryStore) SetAnalysisError(ctx context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.AnalysisError = errMsg
	msg.UpdatedAt = time.Now()
	return nil
}

// ResetAnalysisState clears the error and analyzed-at fields for a
// group of messages
func (s *MemoryStore) ResetAnalysisState(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		msg, ok := s.messages[id]
		if !ok {
			return ErrNotFound
		}
		msg.AnalysisError = ""
		msg.AnalyzedAt = nil
		msg.UpdatedAt = time.Now()
	}
	return nil
}

// ListPending returns pending work items created at or after since,
// paged by limit/offset
func (s *MemoryStore) ListPending(ctx context.Context, userID string, since time.Time, limit, offset int) ([]core.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []core.WorkItem
	for _, item := range s.workItems {
		if item.UserID != userID || item.Status != core.StatusPending || item.CreatedAt.Before(since) {
			continue
		}
		matched = append(matched, *item)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return page(matched, limit, offset), nil
}

// UpdateScore rewrites a work item's urgency score
func (s *MemoryStore) UpdateScore(ctx context.Context, id string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.workItems[id]
	if !ok {
		return ErrNotFound
	}
	item.Score = score
	return nil
}

// ListRelationships returns all relationship priorities for the user
func (s *MemoryStore) ListRelationships(ctx context.Context, userID string) ([]core.RelationshipPriority, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.RelationshipPriority(nil), s.relationships[userID]...), nil
}

// ListActive returns the ids of all onboarded users
func (s *MemoryStore) ListActive(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.users...), nil
}

// ListLearnedPatterns returns the user's learned sender patterns
func (s *MemoryStore) ListLearnedPatterns(ctx context.Context, userID string) ([]core.LearnedPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.LearnedPattern(nil), s.patterns[userID]...), nil
}

// CategorySummaries returns per-category rollups for the user
func (s *MemoryStore) CategorySummaries(ctx context.Context, userID string) ([]core.CategorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.CategorySummary(nil), s.summaries[userID]...), nil
}

// RelationshipInsights returns correspondent observations for the user
func (s *MemoryStore) RelationshipInsights(ctx context.Context, userID string) ([]core.RelationshipInsight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.RelationshipInsight(nil), s.insights[userID]...), nil
}

// Close releases the backing resources
func (s *MemoryStore) Close() error {
	return nil
}

func isWorkRelevant(category core.Category) bool {
	for _, c := range core.WorkRelevantCategories {
		if c == category {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
