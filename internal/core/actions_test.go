package core

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func newTestActionEngine() *ActionEngine {
	e := NewActionEngine(ActionConfig{}, zap.NewNop())
	e.now = fixedNow
	return e
}

func TestGenerateActionsMergesAndRanks(t *testing.T) {
	e := newTestActionEngine()

	summaries := []CategorySummary{
		{Category: CategoryWork, Count: 8, UrgentCount: 2},
		{Category: CategoryFinance, Count: 3, UrgentCount: 1},
		{Category: CategoryShopping, Count: 12},
		{Category: CategoryNewsletter, Count: 7},
	}
	insights := []RelationshipInsight{
		{Type: InsightSuggestedRelationship, Email: "cto@clientco.example", Name: "Dana", EmailCount: 6},
		{Type: InsightSuggestedRelationship, Email: "once@stranger.example", EmailCount: 1},
	}

	actions := e.GenerateActions(summaries, insights)

	wantOrder := []struct {
		actionType ActionType
		priority   ActionPriority
	}{
		{ActionReviewUrgent, ActionPriorityHigh},
		{ActionAddRelationship, ActionPriorityMedium},
		{ActionArchiveCategory, ActionPriorityMedium}, // 12 shopping
		{ActionArchiveCategory, ActionPriorityLow},    // 7 newsletter
	}
	if len(actions) != len(wantOrder) {
		t.Fatalf("got %d actions, want %d: %+v", len(actions), len(wantOrder), actions)
	}
	for i, want := range wantOrder {
		if actions[i].Type != want.actionType || actions[i].Priority != want.priority {
			t.Errorf("action[%d] = %s/%s, want %s/%s",
				i, actions[i].Type, actions[i].Priority, want.actionType, want.priority)
		}
	}

	// Urgent counts sum across work-relevant categories only.
	if actions[0].Count != 3 {
		t.Errorf("urgent count = %d, want 3", actions[0].Count)
	}
	if actions[2].Title != "Archive 12 shopping emails" {
		t.Errorf("archive title = %q", actions[2].Title)
	}
}

func TestGenerateActionsEventPriority(t *testing.T) {
	e := newTestActionEngine()

	near := fixedNow().Add(10 * time.Hour)
	far := fixedNow().Add(72 * time.Hour)

	t.Run("event inside a day is high", func(t *testing.T) {
		actions := e.GenerateActions([]CategorySummary{
			{Category: CategoryTravel, Count: 2, NextEventAt: &near},
		}, nil)
		if len(actions) != 1 || actions[0].Type != ActionReviewEvents {
			t.Fatalf("unexpected actions: %+v", actions)
		}
		if actions[0].Priority != ActionPriorityHigh {
			t.Errorf("priority = %s, want high", actions[0].Priority)
		}
	})

	t.Run("soonest event labels the action", func(t *testing.T) {
		actions := e.GenerateActions([]CategorySummary{
			{Category: CategoryWork, Count: 4, NextEventAt: &far},
			{Category: CategoryTravel, Count: 2, NextEventAt: &near},
		}, nil)
		if len(actions) != 1 {
			t.Fatalf("unexpected actions: %+v", actions)
		}
		if actions[0].Category != CategoryTravel {
			t.Errorf("labeled category = %s, want travel", actions[0].Category)
		}
		if actions[0].Count != 2 {
			t.Errorf("event count = %d, want 2", actions[0].Count)
		}
	})

	t.Run("event beyond a day is medium", func(t *testing.T) {
		actions := e.GenerateActions([]CategorySummary{
			{Category: CategoryWork, Count: 4, NextEventAt: &far},
		}, nil)
		if len(actions) != 1 || actions[0].Priority != ActionPriorityMedium {
			t.Fatalf("unexpected actions: %+v", actions)
		}
	})
}

func TestGenerateActionsThresholds(t *testing.T) {
	e := newTestActionEngine()

	t.Run("archive below minimum count", func(t *testing.T) {
		actions := e.GenerateActions([]CategorySummary{
			{Category: CategoryNewsletter, Count: 4},
		}, nil)
		if len(actions) != 0 {
			t.Errorf("expected no actions, got %+v", actions)
		}
	})

	t.Run("archive only for allow-listed categories", func(t *testing.T) {
		actions := e.GenerateActions([]CategorySummary{
			{Category: CategoryWork, Count: 50},
		}, nil)
		if len(actions) != 0 {
			t.Errorf("work must never earn an archive suggestion, got %+v", actions)
		}
	})

	t.Run("relationship below minimum emails", func(t *testing.T) {
		actions := e.GenerateActions(nil, []RelationshipInsight{
			{Type: InsightSuggestedRelationship, Email: "once@stranger.example", EmailCount: 1},
		})
		if len(actions) != 0 {
			t.Errorf("expected no actions, got %+v", actions)
		}
	})

	t.Run("non-relationship insight types are ignored", func(t *testing.T) {
		actions := e.GenerateActions(nil, []RelationshipInsight{
			{Type: InsightType("frequent_thread"), Email: "x@y.example", EmailCount: 9},
		})
		if len(actions) != 0 {
			t.Errorf("expected no actions, got %+v", actions)
		}
	})
}

func TestGenerateActionsCap(t *testing.T) {
	e := newTestActionEngine()

	near := fixedNow().Add(3 * time.Hour)
	summaries := []CategorySummary{
		{Category: CategoryWork, Count: 9, UrgentCount: 4, NextEventAt: &near},
		{Category: CategoryNewsletter, Count: 20},
		{Category: CategoryMarketing, Count: 15},
		{Category: CategorySocial, Count: 11},
		{Category: CategoryShopping, Count: 6},
	}
	insights := []RelationshipInsight{
		{Type: InsightSuggestedRelationship, Email: "a@example.com", EmailCount: 7},
	}

	actions := e.GenerateActions(summaries, insights)
	if len(actions) != 5 {
		t.Fatalf("got %d actions, want the cap of 5", len(actions))
	}
	// High-priority families must survive the truncation.
	if actions[0].Type != ActionReviewUrgent || actions[1].Type != ActionReviewEvents {
		t.Errorf("unexpected leading actions: %+v", actions[:2])
	}
}
