package core

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"below floor", 0.5, 1.0},
		{"negative", -3, 1.0},
		{"at floor", 1, 1.0},
		{"inside range", 5.5, 5.5},
		{"at ceiling", 10, 10.0},
		{"above ceiling", 15, 10.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampScore(tt.in); !almostEqual(got, tt.want) {
				t.Errorf("ClampScore(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestScorerScore(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	scorer := NewScorer(ScoringConfig{})

	deadlineIn := func(d time.Duration) *time.Time {
		at := now.Add(d)
		return &at
	}

	tests := []struct {
		name       string
		base       float64
		deadline   *time.Time
		createdAt  time.Time
		multiplier float64
		want       float64
	}{
		{
			name:       "no factors",
			base:       4,
			createdAt:  now.Add(-time.Hour),
			multiplier: 1.0,
			want:       4,
		},
		{
			name:       "tight deadline with vip caps at ceiling",
			base:       5,
			deadline:   deadlineIn(2 * time.Hour),
			createdAt:  now.Add(-time.Hour),
			multiplier: 1.5,
			want:       10, // 5 * 2.0 * 1.5 = 15, clamped
		},
		{
			name:       "deadline inside two days",
			base:       2,
			deadline:   deadlineIn(30 * time.Hour),
			createdAt:  now.Add(-time.Hour),
			multiplier: 1.0,
			want:       2.5, // 2 * 1.25
		},
		{
			name:       "overdue deadline uses tightest tier",
			base:       3,
			deadline:   deadlineIn(-time.Hour),
			createdAt:  now.Add(-time.Hour),
			multiplier: 1.0,
			want:       6, // 3 * 2.0
		},
		{
			name:       "week-old item",
			base:       2,
			createdAt:  now.AddDate(0, 0, -8),
			multiplier: 1.0,
			want:       2.6, // 2 * 1.3
		},
		{
			name:       "three-day-old item",
			base:       2,
			createdAt:  now.AddDate(0, 0, -3),
			multiplier: 1.0,
			want:       2.2, // 2 * 1.1
		},
		{
			name:       "zero multiplier is neutral",
			base:       4,
			createdAt:  now.Add(-time.Hour),
			multiplier: 0,
			want:       4,
		},
		{
			name:       "floor holds for tiny base",
			base:       0.5,
			createdAt:  now.Add(-time.Hour),
			multiplier: 1.0,
			want:       1,
		},
		{
			name:       "every factor stacked still capped",
			base:       10,
			deadline:   deadlineIn(-24 * time.Hour),
			createdAt:  now.AddDate(0, 0, -30),
			multiplier: 1.5,
			want:       10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.base, tt.deadline, tt.createdAt, tt.multiplier, now)
			if !almostEqual(got, tt.want) {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeadlineFactor(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	scorer := NewScorer(ScoringConfig{})

	tests := []struct {
		name      string
		remaining time.Duration
		want      float64
	}{
		{"one hour away", time.Hour, 2.0},
		{"exactly four hours is the next tier", 4 * time.Hour, 1.5},
		{"twelve hours away", 12 * time.Hour, 1.5},
		{"forty hours away", 40 * time.Hour, 1.25},
		{"sixty hours away", 60 * time.Hour, 1.1},
		{"four days away", 96 * time.Hour, 1.0},
		{"overdue", -time.Minute, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deadline := now.Add(tt.remaining)
			if got := scorer.DeadlineFactor(&deadline, now); !almostEqual(got, tt.want) {
				t.Errorf("DeadlineFactor(%v) = %v, want %v", tt.remaining, got, tt.want)
			}
		})
	}

	t.Run("nil deadline", func(t *testing.T) {
		if got := scorer.DeadlineFactor(nil, now); !almostEqual(got, 1.0) {
			t.Errorf("DeadlineFactor(nil) = %v, want 1.0", got)
		}
	})
}

func TestStalenessFactor(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	scorer := NewScorer(ScoringConfig{})

	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"fresh", time.Hour, 1.0},
		{"exactly two days is not yet stale", 48 * time.Hour, 1.0},
		{"just over two days", 48*time.Hour + time.Second, 1.1},
		{"five days", 5 * 24 * time.Hour, 1.2},
		{"eight days", 8 * 24 * time.Hour, 1.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			createdAt := now.Add(-tt.age)
			if got := scorer.StalenessFactor(createdAt, now); !almostEqual(got, tt.want) {
				t.Errorf("StalenessFactor(age %v) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestScoreMonotonicInBase(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	scorer := NewScorer(ScoringConfig{})
	deadline := now.Add(12 * time.Hour)

	prev := 0.0
	for base := 1.0; base <= 10.0; base++ {
		got := scorer.Score(base, &deadline, now.AddDate(0, 0, -3), 1.2, now)
		if got < prev {
			t.Fatalf("score decreased from %v to %v at base %v", prev, got, base)
		}
		if got < MinScore || got > MaxScore {
			t.Fatalf("score %v outside [%v, %v]", got, MinScore, MaxScore)
		}
		prev = got
	}
}
