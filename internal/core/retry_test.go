package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeAnalyzer returns canned outcomes per message id and records the
// call order.
type fakeAnalyzer struct {
	errs  map[string]error
	calls []string
}

func (a *fakeAnalyzer) AnalyzeMessage(ctx context.Context, msg *Message, userCtx *UserContext) (*AnalysisOutcome, error) {
	a.calls = append(a.calls, msg.ID)
	if err := a.errs[msg.ID]; err != nil {
		return nil, err
	}
	return &AnalysisOutcome{
		Category:   CategoryWork,
		Urgency:    5,
		Confidence: 0.9,
		AnalyzedAt: fixedNow(),
	}, nil
}

func newTestRetrier(store Store, analyzer Analyzer, cfg RetryConfig) *RetryService {
	svc := NewRetryService(store, analyzer, cfg, zap.NewNop())
	svc.now = fixedNow
	svc.sleep = func(context.Context, time.Duration) {}
	return svc
}

func failedMessage(id, userID string, updatedAgo time.Duration) Message {
	return Message{
		ID:            id,
		UserID:        userID,
		Sender:        "someone@example.com",
		AnalysisError: "model timeout",
		UpdatedAt:     fixedNow().Add(-updatedAgo),
	}
}

func TestRetryWindowEligibility(t *testing.T) {
	store := newStubStore()
	store.messages = []Message{
		failedMessage("m-fresh", "u1", time.Hour), // still cooling down
		failedMessage("m-eligible", "u1", 25*time.Hour),
		failedMessage("m-abandoned", "u1", 8*24*time.Hour),
	}
	analyzer := &fakeAnalyzer{}

	result := newTestRetrier(store, analyzer, RetryConfig{}).RetryFailedAnalyses(context.Background())

	if !result.Success {
		t.Fatalf("unexpected failure: %+v", result.Errors)
	}
	if result.EmailsFound != 1 || result.EmailsRetried != 1 || result.EmailsSucceeded != 1 {
		t.Errorf("found/retried/succeeded = %d/%d/%d, want 1/1/1",
			result.EmailsFound, result.EmailsRetried, result.EmailsSucceeded)
	}
	if len(analyzer.calls) != 1 || analyzer.calls[0] != "m-eligible" {
		t.Errorf("analyzer calls = %v, want only m-eligible", analyzer.calls)
	}
	if got := store.classifications["m-eligible"]; got != CategoryWork {
		t.Errorf("classification = %q, want %q", got, CategoryWork)
	}
}

func TestRetryFoundCountReflectsFullBacklog(t *testing.T) {
	store := newStubStore()
	for i := 0; i < 30; i++ {
		store.messages = append(store.messages,
			failedMessage(fmt.Sprintf("m%02d", i), "u1", 48*time.Hour+time.Duration(i)*time.Minute))
	}
	analyzer := &fakeAnalyzer{}

	result := newTestRetrier(store, analyzer, RetryConfig{}).RetryFailedAnalyses(context.Background())

	if result.EmailsFound != 30 {
		t.Errorf("found = %d, want the full backlog of 30", result.EmailsFound)
	}
	if result.EmailsRetried != 25 {
		t.Errorf("retried = %d, want the per-run cap of 25", result.EmailsRetried)
	}
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result.Errors)
	}
}

func TestRetryOldestFirstGroupedByUser(t *testing.T) {
	store := newStubStore()
	store.messages = []Message{
		failedMessage("m-u2-late", "u2", 30*time.Hour),
		failedMessage("m-u1-oldest", "u1", 72*time.Hour),
		failedMessage("m-u1-middle", "u1", 48*time.Hour),
	}
	analyzer := &fakeAnalyzer{}

	newTestRetrier(store, analyzer, RetryConfig{}).RetryFailedAnalyses(context.Background())

	// u1 owns the oldest failure, so its whole group runs before u2.
	want := []string{"m-u1-oldest", "m-u1-middle", "m-u2-late"}
	if len(analyzer.calls) != len(want) {
		t.Fatalf("analyzer calls = %v, want %v", analyzer.calls, want)
	}
	for i, id := range want {
		if analyzer.calls[i] != id {
			t.Errorf("call[%d] = %s, want %s", i, analyzer.calls[i], id)
		}
	}
	if len(store.resetCalls) != 2 {
		t.Errorf("reset calls = %d, want one per user group", len(store.resetCalls))
	}
}

func TestRetryGroupResetFailureSkipsAnalysis(t *testing.T) {
	store := newStubStore()
	store.resetErr = errors.New("write lock timeout")
	store.messages = []Message{
		failedMessage("m1", "u1", 48*time.Hour),
		failedMessage("m2", "u1", 30*time.Hour),
	}
	analyzer := &fakeAnalyzer{}

	result := newTestRetrier(store, analyzer, RetryConfig{}).RetryFailedAnalyses(context.Background())

	if result.Success {
		t.Errorf("result must not report success after a failed group reset")
	}
	if result.EmailsFailed != 2 || result.EmailsRetried != 0 {
		t.Errorf("failed/retried = %d/%d, want 2/0", result.EmailsFailed, result.EmailsRetried)
	}
	if len(analyzer.calls) != 0 {
		t.Errorf("analyzer must not run for an unreset group, got %v", analyzer.calls)
	}
}

func TestRetryOneFailureDoesNotStopTheRun(t *testing.T) {
	store := newStubStore()
	store.messages = []Message{
		failedMessage("m1", "u1", 72*time.Hour),
		failedMessage("m2", "u1", 48*time.Hour),
		failedMessage("m3", "u1", 30*time.Hour),
	}
	analyzer := &fakeAnalyzer{errs: map[string]error{"m2": errors.New("model overloaded")}}

	result := newTestRetrier(store, analyzer, RetryConfig{}).RetryFailedAnalyses(context.Background())

	if result.Success {
		t.Errorf("result must not report success with a failed item")
	}
	if result.EmailsRetried != 3 || result.EmailsSucceeded != 2 || result.EmailsFailed != 1 {
		t.Errorf("retried/succeeded/failed = %d/%d/%d, want 3/2/1",
			result.EmailsRetried, result.EmailsSucceeded, result.EmailsFailed)
	}
	// The failed item goes back to the error state for the next run.
	if store.analysisErrors["m2"] == "" {
		t.Errorf("m2 must carry a fresh analysis error")
	}
	if store.classifications["m3"] != CategoryWork {
		t.Errorf("items after the failure must still be processed")
	}
}

func TestRetryCandidateQueryFailureIsFatal(t *testing.T) {
	store := newStubStore()
	store.retryErr = errors.New("connection refused")

	result := newTestRetrier(store, &fakeAnalyzer{}, RetryConfig{}).RetryFailedAnalyses(context.Background())

	if result.Success {
		t.Errorf("result must not report success when the query fails")
	}
	if result.EmailsFound != 0 || result.EmailsRetried != 0 {
		t.Errorf("found/retried = %d/%d, want 0/0", result.EmailsFound, result.EmailsRetried)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v, want exactly the query error", result.Errors)
	}
}

func TestRetryEmptyWindowSucceeds(t *testing.T) {
	result := newTestRetrier(newStubStore(), &fakeAnalyzer{}, RetryConfig{}).RetryFailedAnalyses(context.Background())
	if !result.Success {
		t.Errorf("an empty run is a success, got %+v", result)
	}
}

func TestRetryRelationshipLoadFailureStillAnalyzes(t *testing.T) {
	store := newStubStore()
	store.relationshipsErr = errors.New("relationship table offline")
	store.messages = []Message{failedMessage("m1", "u1", 48*time.Hour)}
	analyzer := &fakeAnalyzer{}

	result := newTestRetrier(store, analyzer, RetryConfig{}).RetryFailedAnalyses(context.Background())

	if !result.Success {
		t.Fatalf("context load failure must degrade, not fail: %+v", result.Errors)
	}
	if len(analyzer.calls) != 1 {
		t.Errorf("analyzer calls = %v, want m1 with empty context", analyzer.calls)
	}
}
