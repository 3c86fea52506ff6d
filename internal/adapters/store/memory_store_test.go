package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inboxkit/mail-triage/internal/core"
	"go.uber.org/zap"
)

func TestListWorkRelevantFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(zap.NewNop())

	s.AddMessage(core.Message{ID: "m-work", UserID: "u1", Category: core.CategoryWork,
		ReceivedAt: now.Add(-2 * time.Hour)})
	s.AddMessage(core.Message{ID: "m-finance", UserID: "u1", Category: core.CategoryFinance,
		ReceivedAt: now.Add(-4 * time.Hour)})
	s.AddMessage(core.Message{ID: "m-newsletter", UserID: "u1", Category: core.CategoryNewsletter,
		ReceivedAt: now.Add(-time.Hour)})
	s.AddMessage(core.Message{ID: "m-other-user", UserID: "u2", Category: core.CategoryWork,
		ReceivedAt: now.Add(-time.Hour)})
	s.AddMessage(core.Message{ID: "m-too-old", UserID: "u1", Category: core.CategoryWork,
		ReceivedAt: now.AddDate(0, 0, -30)})

	msgs, err := s.ListWorkRelevant(ctx, "u1", now.AddDate(0, 0, -14), 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(msgs), msgs)
	}
	// Oldest received first.
	if msgs[0].ID != "m-finance" || msgs[1].ID != "m-work" {
		t.Errorf("order = [%s, %s], want [m-finance, m-work]", msgs[0].ID, msgs[1].ID)
	}
}

func TestListWorkRelevantPaging(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(zap.NewNop())
	for _, id := range []string{"a", "b", "c"} {
		s.AddMessage(core.Message{ID: id, UserID: "u1", Category: core.CategoryWork, ReceivedAt: now})
	}

	first, _ := s.ListWorkRelevant(ctx, "u1", now.Add(-time.Hour), 2, 0)
	second, _ := s.ListWorkRelevant(ctx, "u1", now.Add(-time.Hour), 2, 2)
	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("pages = %d/%d, want 2/1", len(first), len(second))
	}
	if second[0].ID != "c" {
		t.Errorf("second page = %s, want c", second[0].ID)
	}
}

func TestListRetryCandidatesWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(zap.NewNop())

	analyzed := now.Add(-48 * time.Hour)
	seed := []core.Message{
		{ID: "m-eligible", AnalysisError: "timeout", UpdatedAt: now.Add(-25 * time.Hour)},
		{ID: "m-cooling", AnalysisError: "timeout", UpdatedAt: now.Add(-time.Hour)},
		{ID: "m-abandoned", AnalysisError: "timeout", UpdatedAt: now.AddDate(0, 0, -8)},
		{ID: "m-no-error", UpdatedAt: now.Add(-25 * time.Hour)},
		{ID: "m-analyzed", AnalysisError: "timeout", AnalyzedAt: &analyzed, UpdatedAt: now.Add(-25 * time.Hour)},
	}
	for _, msg := range seed {
		s.AddMessage(msg)
	}

	got, err := s.ListRetryCandidates(ctx, now.AddDate(0, 0, -7), now.Add(-24*time.Hour), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m-eligible" {
		t.Fatalf("candidates = %+v, want only m-eligible", got)
	}
}

func TestListRetryCandidatesOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(zap.NewNop())

	s.AddMessage(core.Message{ID: "m-newer", AnalysisError: "x", UpdatedAt: now.Add(-30 * time.Hour)})
	s.AddMessage(core.Message{ID: "m-older", AnalysisError: "x", UpdatedAt: now.Add(-60 * time.Hour)})

	got, _ := s.ListRetryCandidates(ctx, now.AddDate(0, 0, -7), now.Add(-24*time.Hour), 1)
	if len(got) != 1 || got[0].ID != "m-older" {
		t.Errorf("candidates = %+v, want the oldest failure first", got)
	}
}

func TestUpdateUrgencyRefreshesAnalyzedAt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(zap.NewNop())
	s.AddMessage(core.Message{ID: "m1", UserID: "u1", Urgency: 4})

	if err := s.UpdateUrgency(ctx, "m1", 5.2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, ok := s.GetMessage("m1")
	if !ok {
		t.Fatal("message disappeared")
	}
	if msg.Urgency != 5.2 {
		t.Errorf("urgency = %v, want 5.2", msg.Urgency)
	}
	if msg.AnalyzedAt == nil {
		t.Errorf("analyzed-at must be stamped by an urgency rewrite")
	}
}

func TestResetAnalysisStateClearsGroup(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryStore(zap.NewNop())
	s.AddMessage(core.Message{ID: "m1", AnalysisError: "x", AnalyzedAt: &now})
	s.AddMessage(core.Message{ID: "m2", AnalysisError: "x"})

	if err := s.ResetAnalysisState(ctx, []string{"m1", "m2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"m1", "m2"} {
		msg, _ := s.GetMessage(id)
		if msg.AnalysisError != "" || msg.AnalyzedAt != nil {
			t.Errorf("%s not reset: %+v", id, msg)
		}
	}
}

func TestUpdateClassificationClearsError(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryStore(zap.NewNop())
	s.AddMessage(core.Message{ID: "m1", AnalysisError: "timeout"})

	if err := s.UpdateClassification(ctx, "m1", core.CategoryWork, 6, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, _ := s.GetMessage("m1")
	if msg.Category != core.CategoryWork || msg.Urgency != 6 {
		t.Errorf("envelope = %+v", msg)
	}
	if msg.AnalysisError != "" {
		t.Errorf("a successful classification must clear the error")
	}
}

func TestMissingRecordsReturnNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(zap.NewNop())

	if err := s.UpdateScore(ctx, "nope", 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateScore error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateUrgency(ctx, "nope", 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateUrgency error = %v, want ErrNotFound", err)
	}
}

func TestListPendingFiltersStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(zap.NewNop())
	s.AddWorkItem(core.WorkItem{ID: "w-pending", UserID: "u1", Status: core.StatusPending, CreatedAt: now})
	s.AddWorkItem(core.WorkItem{ID: "w-done", UserID: "u1", Status: core.StatusDone, CreatedAt: now})

	items, err := s.ListPending(ctx, "u1", now.Add(-time.Hour), 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "w-pending" {
		t.Errorf("items = %+v, want only the pending one", items)
	}
}
