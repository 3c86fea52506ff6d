package core

import (
	"strings"
	"time"
)

// Category labels a message's content classification.
type Category string

const (
	CategoryWork         Category = "work"
	CategoryPersonal     Category = "personal"
	CategoryFinance      Category = "finance"
	CategoryShopping     Category = "shopping"
	CategoryTravel       Category = "travel"
	CategoryNewsletter   Category = "newsletter"
	CategoryMarketing    Category = "marketing"
	CategorySocial       Category = "social"
	CategoryNotification Category = "notification"
	CategoryOpportunity  Category = "opportunity"
	CategoryOther        Category = "other"
)

// WorkRelevantCategories are the categories whose messages carry urgency
// scores and participate in reassessment.
var WorkRelevantCategories = []Category{CategoryWork, CategoryPersonal, CategoryFinance}

// SenderType classifies the originator's relationship to the user.
type SenderType string

const (
	SenderDirect       SenderType = "direct"
	SenderBroadcast    SenderType = "broadcast"
	SenderColdOutreach SenderType = "cold_outreach"
	SenderOpportunity  SenderType = "opportunity"
	SenderUnknown      SenderType = "unknown"
)

// BroadcastSubtype refines a broadcast sender classification.
type BroadcastSubtype string

const (
	SubtypeNewsletter    BroadcastSubtype = "newsletter"
	SubtypeMarketing     BroadcastSubtype = "marketing"
	SubtypeTransactional BroadcastSubtype = "transactional"
	SubtypeSocial        BroadcastSubtype = "social"
)

// Message represents a synced email message. The sync subsystem owns the
// immutable fields; this core only reads them and updates the
// classification envelope (Category, Urgency, AnalysisError, AnalyzedAt,
// UpdatedAt).
type Message struct {
	ID         string
	UserID     string
	Sender     string
	SenderName string
	Subject    string
	Body       string
	Headers    map[string][]string
	Labels     []string
	ReceivedAt time.Time

	// Classification envelope
	Category      Category
	Urgency       float64
	AnalysisError string
	AnalyzedAt    *time.Time
	UpdatedAt     time.Time
}

// Header returns the first value of the named transport header,
// case-insensitively. Returns "" when absent.
func (m *Message) Header(name string) string {
	for key, values := range m.Headers {
		if len(values) > 0 && strings.EqualFold(key, name) {
			return values[0]
		}
	}
	return ""
}

// HasLabel reports whether the message carries the given platform label.
func (m *Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// WorkItemStatus is the lifecycle state of a work item.
type WorkItemStatus string

const (
	StatusPending    WorkItemStatus = "pending"
	StatusInProgress WorkItemStatus = "in_progress"
	StatusDone       WorkItemStatus = "done"
	StatusCancelled  WorkItemStatus = "cancelled"
)

// WorkItem is a task or actionable message derived at classification
// time. BaseUrgency is fixed at creation; Score is the only field the
// reassessment job rewrites.
type WorkItem struct {
	ID             string
	UserID         string
	Title          string
	BaseUrgency    float64
	Score          float64
	Deadline       *time.Time
	CreatedAt      time.Time
	Status         WorkItemStatus
	RelationshipID string
}

// RelationshipTier is a per-relationship importance level.
type RelationshipTier string

const (
	TierNormal RelationshipTier = "normal"
	TierHigh   RelationshipTier = "high"
	TierVIP    RelationshipTier = "vip"
)

// Multiplier returns the scoring multiplier for the tier.
func (t RelationshipTier) Multiplier() float64 {
	switch t {
	case TierVIP:
		return 1.5
	case TierHigh:
		return 1.2
	default:
		return 1.0
	}
}

// RelationshipPriority is a user-managed importance assignment for a
// tracked correspondent. Read-only to this core.
type RelationshipPriority struct {
	ID     string
	UserID string
	Email  string
	Name   string
	Tier   RelationshipTier
}

// LearnedPattern is a per-user sender pattern accumulated from past
// classifications. Pattern is either a full address or a bare domain.
type LearnedPattern struct {
	UserID     string
	Pattern    string
	Category   Category
	Confidence float64
}

// PreFilterDecision says whether a message may skip the expensive
// analysis pass.
type PreFilterDecision string

const (
	DecisionSkipAnalysis PreFilterDecision = "skip_analysis"
	DecisionAnalyze      PreFilterDecision = "analyze"
)

// PreFilterResult is the outcome of the cheap rule-based gate. It is
// never persisted; callers fold it into the message envelope.
type PreFilterResult struct {
	Decision   PreFilterDecision
	Category   Category
	Confidence float64
	Provenance string
	Signals    []string
}

// Skip reports whether the message may bypass the analyzer.
func (r *PreFilterResult) Skip() bool {
	return r.Decision == DecisionSkipAnalysis
}

// PreFilterStats aggregates a batch pre-filter pass for observability.
type PreFilterStats struct {
	Total           int            `json:"total"`
	ToAnalyze       int            `json:"to_analyze"`
	AutoCategorized int            `json:"auto_categorized"`
	Skipped         int            `json:"skipped"`
	ByProvenance    map[string]int `json:"by_provenance"`
	ByCategory      map[string]int `json:"by_category"`
}

// SenderTypeDetectionResult is the outcome of sender type detection.
type SenderTypeDetectionResult struct {
	SenderType SenderType
	Subtype    BroadcastSubtype
	Confidence float64
	Provenance string
	Reasoning  string
	Signals    []string
}

// UserContext carries the per-user context handed to the analyzer.
type UserContext struct {
	UserID        string
	Relationships []RelationshipPriority
}

// AnalysisOutcome is the structured result of an external analyzer call.
type AnalysisOutcome struct {
	Category    Category
	Urgency     float64
	Confidence  float64
	Explanation string
	ModelUsed   string
	AnalyzedAt  time.Time
}

// ReassessmentResult is the aggregate outcome of one user's
// reassessment run. Returned to the trigger caller and logged, never
// persisted.
type ReassessmentResult struct {
	UserID            string   `json:"user_id"`
	Success           bool     `json:"success"`
	ItemsProcessed    int      `json:"items_processed"`
	ItemsUpdated      int      `json:"items_updated"`
	MessagesProcessed int      `json:"messages_processed"`
	MessagesUpdated   int      `json:"messages_updated"`
	Errors            []string `json:"errors"`
	DurationMS        int64    `json:"duration_ms"`
}

// RetryJobResult is the aggregate outcome of one retry run.
type RetryJobResult struct {
	Success         bool     `json:"success"`
	EmailsFound     int      `json:"emails_found"`
	EmailsRetried   int      `json:"emails_retried"`
	EmailsSucceeded int      `json:"emails_succeeded"`
	EmailsFailed    int      `json:"emails_failed"`
	Errors          []string `json:"errors"`
	DurationMS      int64    `json:"duration_ms"`
}

// CategorySummary is an already-computed per-category rollup consumed
// by the action suggestion engine.
type CategorySummary struct {
	Category    Category
	Count       int
	UrgentCount int
	NextEventAt *time.Time
}

// InsightType tags a relationship insight.
type InsightType string

// InsightSuggestedRelationship marks a correspondent worth tracking.
const InsightSuggestedRelationship InsightType = "suggested_relationship"

// RelationshipInsight is a precomputed observation about a
// correspondent, consumed by the action suggestion engine.
type RelationshipInsight struct {
	Type       InsightType
	Email      string
	Name       string
	EmailCount int
}

// ActionType identifies a suggested bulk action.
type ActionType string

const (
	ActionReviewUrgent    ActionType = "review_urgent"
	ActionReviewEvents    ActionType = "review_events"
	ActionAddRelationship ActionType = "add_relationship"
	ActionArchiveCategory ActionType = "archive_category"
)

// ActionPriority orders suggested actions for display.
type ActionPriority string

const (
	ActionPriorityHigh   ActionPriority = "high"
	ActionPriorityMedium ActionPriority = "medium"
	ActionPriorityLow    ActionPriority = "low"
)

// SuggestedAction is one recommended bulk action.
type SuggestedAction struct {
	Type        ActionType     `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    ActionPriority `json:"priority"`
	Category    Category       `json:"category,omitempty"`
	Email       string         `json:"email,omitempty"`
	Count       int            `json:"count,omitempty"`
}
