package core

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"
)

// stubStore is a minimal in-memory Store with per-method error
// injection for the job service tests.
type stubStore struct {
	users            []string
	usersErr         error
	relationships    map[string][]RelationshipPriority
	relationshipsErr error

	workItems    []WorkItem
	workItemsErr error
	messages     []Message
	messagesErr  error

	retryErr error
	resetErr error

	scoreWrites     map[string]float64
	urgencyWrites   map[string]float64
	classifications map[string]Category
	analysisErrors  map[string]string
	resetCalls      [][]string
}

func newStubStore() *stubStore {
	return &stubStore{
		relationships:   make(map[string][]RelationshipPriority),
		scoreWrites:     make(map[string]float64),
		urgencyWrites:   make(map[string]float64),
		classifications: make(map[string]Category),
		analysisErrors:  make(map[string]string),
	}
}

func (s *stubStore) ListWorkRelevant(ctx context.Context, userID string, since time.Time, limit, offset int) ([]Message, error) {
	if s.messagesErr != nil {
		return nil, s.messagesErr
	}
	var matched []Message
	for _, msg := range s.messages {
		if msg.UserID == userID && !msg.ReceivedAt.Before(since) {
			matched = append(matched, msg)
		}
	}
	return pageSlice(matched, limit, offset), nil
}

func (s *stubStore) ListRetryCandidates(ctx context.Context, oldest, newest time.Time, limit int) ([]Message, error) {
	if s.retryErr != nil {
		return nil, s.retryErr
	}
	var matched []Message
	for _, msg := range s.messages {
		if msg.AnalysisError == "" || msg.AnalyzedAt != nil {
			continue
		}
		if !msg.UpdatedAt.After(oldest) || msg.UpdatedAt.After(newest) {
			continue
		}
		matched = append(matched, msg)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *stubStore) UpdateClassification(ctx context.Context, id string, category Category, urgency float64, analyzedAt time.Time) error {
	s.classifications[id] = category
	for i := range s.messages {
		if s.messages[i].ID == id {
			at := analyzedAt
			s.messages[i].Category = category
			s.messages[i].Urgency = urgency
			s.messages[i].AnalysisError = ""
			s.messages[i].AnalyzedAt = &at
		}
	}
	return nil
}

func (s *stubStore) UpdateUrgency(ctx context.Context, id string, urgency float64) error {
	s.urgencyWrites[id] = urgency
	now := time.Now()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Urgency = urgency
			s.messages[i].AnalyzedAt = &now
		}
	}
	return nil
}

func (s *stubStore) SetAnalysisError(ctx context.Context, id string, errMsg string) error {
	s.analysisErrors[id] = errMsg
	return nil
}

func (s *stubStore) ResetAnalysisState(ctx context.Context, ids []string) error {
	s.resetCalls = append(s.resetCalls, ids)
	if s.resetErr != nil {
		return s.resetErr
	}
	for i := range s.messages {
		for _, id := range ids {
			if s.messages[i].ID == id {
				s.messages[i].AnalysisError = ""
				s.messages[i].AnalyzedAt = nil
			}
		}
	}
	return nil
}

func (s *stubStore) ListPending(ctx context.Context, userID string, since time.Time, limit, offset int) ([]WorkItem, error) {
	if s.workItemsErr != nil {
		return nil, s.workItemsErr
	}
	var matched []WorkItem
	for _, item := range s.workItems {
		if item.UserID == userID && item.Status == StatusPending && !item.CreatedAt.Before(since) {
			matched = append(matched, item)
		}
	}
	return pageSlice(matched, limit, offset), nil
}

func (s *stubStore) UpdateScore(ctx context.Context, id string, score float64) error {
	s.scoreWrites[id] = score
	for i := range s.workItems {
		if s.workItems[i].ID == id {
			s.workItems[i].Score = score
		}
	}
	return nil
}

func (s *stubStore) ListRelationships(ctx context.Context, userID string) ([]RelationshipPriority, error) {
	if s.relationshipsErr != nil {
		return nil, s.relationshipsErr
	}
	return s.relationships[userID], nil
}

func (s *stubStore) ListActive(ctx context.Context) ([]string, error) {
	if s.usersErr != nil {
		return nil, s.usersErr
	}
	return s.users, nil
}

func (s *stubStore) ListLearnedPatterns(ctx context.Context, userID string) ([]LearnedPattern, error) {
	return nil, nil
}

func (s *stubStore) CategorySummaries(ctx context.Context, userID string) ([]CategorySummary, error) {
	return nil, nil
}

func (s *stubStore) RelationshipInsights(ctx context.Context, userID string) ([]RelationshipInsight, error) {
	return nil, nil
}

func (s *stubStore) Close() error { return nil }

func pageSlice[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func newTestReassessor(store Store) *ReassessmentService {
	svc := NewReassessmentService(store, NewScorer(ScoringConfig{}), ReassessmentConfig{}, zap.NewNop())
	svc.now = fixedNow
	return svc
}

func TestReassessForUserWritesMaterialDeltas(t *testing.T) {
	now := fixedNow()
	store := newStubStore()
	store.relationships["u1"] = []RelationshipPriority{
		{ID: "r1", UserID: "u1", Email: "boss@clientco.example", Tier: TierVIP},
	}
	deadline := now.Add(2 * time.Hour)
	store.workItems = []WorkItem{
		// 5 * 2.0 (deadline) * 1.5 (vip) = 15, clamped to 10.
		{ID: "w1", UserID: "u1", BaseUrgency: 5, Score: 5, Deadline: &deadline,
			CreatedAt: now.Add(-time.Hour), Status: StatusPending, RelationshipID: "r1"},
		// No factors fire; 4 == stored score, delta under threshold.
		{ID: "w2", UserID: "u1", BaseUrgency: 4, Score: 4,
			CreatedAt: now.Add(-time.Hour), Status: StatusPending},
	}
	analyzedAt := now.AddDate(0, 0, -8)
	store.messages = []Message{
		// 4 * 1.3 (stale) = 5.2, delta 1.2.
		{ID: "m1", UserID: "u1", Sender: "boss@clientco.example", Category: CategoryWork,
			Urgency: 4, ReceivedAt: now.AddDate(0, 0, -8), AnalyzedAt: &analyzedAt},
	}

	result := newTestReassessor(store).ReassessForUser(context.Background(), "u1")

	if !result.Success {
		t.Fatalf("unexpected failure: %+v", result.Errors)
	}
	if result.ItemsProcessed != 2 || result.ItemsUpdated != 1 {
		t.Errorf("items processed/updated = %d/%d, want 2/1", result.ItemsProcessed, result.ItemsUpdated)
	}
	if result.MessagesProcessed != 1 || result.MessagesUpdated != 1 {
		t.Errorf("messages processed/updated = %d/%d, want 1/1", result.MessagesProcessed, result.MessagesUpdated)
	}
	if got := store.scoreWrites["w1"]; !almostEqual(got, 10) {
		t.Errorf("w1 score = %v, want 10", got)
	}
	if _, wrote := store.scoreWrites["w2"]; wrote {
		t.Errorf("w2 must not be rewritten for a zero delta")
	}
	if got := store.urgencyWrites["m1"]; !almostEqual(got, 5.2) {
		t.Errorf("m1 urgency = %v, want 5.2", got)
	}
}

func TestReassessSecondRunWritesNothing(t *testing.T) {
	now := fixedNow()
	store := newStubStore()
	store.relationships["u1"] = []RelationshipPriority{
		{ID: "r1", UserID: "u1", Email: "boss@clientco.example", Tier: TierHigh},
	}
	deadline := now.Add(20 * time.Hour)
	store.workItems = []WorkItem{
		{ID: "w1", UserID: "u1", BaseUrgency: 4, Score: 4, Deadline: &deadline,
			CreatedAt: now.AddDate(0, 0, -5), Status: StatusPending, RelationshipID: "r1"},
	}
	store.messages = []Message{
		{ID: "m1", UserID: "u1", Sender: "boss@clientco.example", Category: CategoryWork,
			Urgency: 6, ReceivedAt: now.AddDate(0, 0, -5)},
	}

	svc := newTestReassessor(store)
	first := svc.ReassessForUser(context.Background(), "u1")
	if first.ItemsUpdated != 1 || first.MessagesUpdated != 1 {
		t.Fatalf("first run updated %d/%d, want 1/1", first.ItemsUpdated, first.MessagesUpdated)
	}

	second := svc.ReassessForUser(context.Background(), "u1")
	if second.ItemsUpdated != 0 || second.MessagesUpdated != 0 {
		t.Errorf("second run updated %d items and %d messages, want zero writes",
			second.ItemsUpdated, second.MessagesUpdated)
	}
}

func TestReassessOneSourceFailureDoesNotStopTheOther(t *testing.T) {
	now := fixedNow()
	store := newStubStore()
	store.workItemsErr = errors.New("work item table offline")
	store.messages = []Message{
		{ID: "m1", UserID: "u1", Sender: "any@one.example", Category: CategoryPersonal,
			Urgency: 3, ReceivedAt: now.AddDate(0, 0, -8)},
	}

	result := newTestReassessor(store).ReassessForUser(context.Background(), "u1")

	if result.Success {
		t.Errorf("result must not report success with a recorded error")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly the work item fetch error", result.Errors)
	}
	if result.MessagesProcessed != 1 || result.MessagesUpdated != 1 {
		t.Errorf("messages processed/updated = %d/%d, want 1/1",
			result.MessagesProcessed, result.MessagesUpdated)
	}
}

func TestReassessRelationshipLoadFailureDegradesToNeutral(t *testing.T) {
	now := fixedNow()
	store := newStubStore()
	store.relationshipsErr = errors.New("relationship table offline")
	deadline := now.Add(2 * time.Hour)
	store.workItems = []WorkItem{
		{ID: "w1", UserID: "u1", BaseUrgency: 4, Score: 4, Deadline: &deadline,
			CreatedAt: now.Add(-time.Hour), Status: StatusPending, RelationshipID: "r1"},
	}

	result := newTestReassessor(store).ReassessForUser(context.Background(), "u1")

	if result.ItemsUpdated != 1 {
		t.Fatalf("items updated = %d, want 1", result.ItemsUpdated)
	}
	// 4 * 2.0 with the neutral multiplier, not 4 * 2.0 * 1.5.
	if got := store.scoreWrites["w1"]; !almostEqual(got, 8) {
		t.Errorf("w1 score = %v, want 8", got)
	}
	if len(result.Errors) == 0 {
		t.Errorf("relationship failure must be recorded")
	}
}

func TestReassessAllUsersIsolatesFailures(t *testing.T) {
	now := fixedNow()
	store := newStubStore()
	store.users = []string{"u1", "u2"}
	store.messages = []Message{
		{ID: "m1", UserID: "u2", Sender: "any@one.example", Category: CategoryWork,
			Urgency: 3, ReceivedAt: now.AddDate(0, 0, -8)},
	}

	results, err := newTestReassessor(store).ReassessAllUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want one per user", len(results))
	}
	if results[0].UserID != "u1" || results[1].UserID != "u2" {
		t.Errorf("unexpected user order: %+v", results)
	}
	if results[1].MessagesUpdated != 1 {
		t.Errorf("u2 messages updated = %d, want 1", results[1].MessagesUpdated)
	}
}

func TestReassessAllUsersListFailure(t *testing.T) {
	store := newStubStore()
	store.usersErr = errors.New("user table offline")

	if _, err := newTestReassessor(store).ReassessAllUsers(context.Background()); err == nil {
		t.Fatalf("expected error when the user list cannot be loaded")
	}
}
