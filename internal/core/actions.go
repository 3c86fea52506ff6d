package core

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ActionConfig holds the thresholds for action generation.
type ActionConfig struct {
	// ArchiveMinCount is the minimum item count before a low-value
	// category earns an archive suggestion.
	ArchiveMinCount int
	// RelationshipMinEmails is the minimum email count before a
	// suggested correspondent earns an add-relationship suggestion.
	RelationshipMinEmails int
	// MaxSuggestions caps the returned list.
	MaxSuggestions int
}

// DefaultActionConfig returns the standard thresholds.
func DefaultActionConfig() ActionConfig {
	return ActionConfig{
		ArchiveMinCount:       5,
		RelationshipMinEmails: 2,
		MaxSuggestions:        5,
	}
}

// archivableCategories is the fixed allow-list of low-value categories
// eligible for archive suggestions.
var archivableCategories = []Category{
	CategoryNewsletter,
	CategoryMarketing,
	CategorySocial,
	CategoryShopping,
}

// actionTypeRank is the tiebreak order within a priority tier.
var actionTypeRank = map[ActionType]int{
	ActionReviewUrgent:    0,
	ActionReviewEvents:    1,
	ActionAddRelationship: 2,
	ActionArchiveCategory: 3,
}

var actionPriorityRank = map[ActionPriority]int{
	ActionPriorityHigh:   0,
	ActionPriorityMedium: 1,
	ActionPriorityLow:    2,
}

// ActionEngine derives a small ranked list of recommended bulk actions
// from already-computed category summaries and relationship insights.
// It is a pure aggregation/ranking step with no I/O.
type ActionEngine struct {
	cfg    ActionConfig
	logger *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewActionEngine creates an action engine.
func NewActionEngine(cfg ActionConfig, logger *zap.Logger) *ActionEngine {
	defaults := DefaultActionConfig()
	if cfg.ArchiveMinCount <= 0 {
		cfg.ArchiveMinCount = defaults.ArchiveMinCount
	}
	if cfg.RelationshipMinEmails <= 0 {
		cfg.RelationshipMinEmails = defaults.RelationshipMinEmails
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = defaults.MaxSuggestions
	}
	return &ActionEngine{cfg: cfg, logger: logger, now: time.Now}
}

// GenerateActions merges the four candidate families, sorts by priority
// tier with action type as tiebreaker, and truncates to the cap.
func (e *ActionEngine) GenerateActions(summaries []CategorySummary, insights []RelationshipInsight) []SuggestedAction {
	actions := make([]SuggestedAction, 0, 8)
	actions = append(actions, e.urgentReviewActions(summaries)...)
	actions = append(actions, e.upcomingEventActions(summaries)...)
	actions = append(actions, e.archiveActions(summaries)...)
	actions = append(actions, e.relationshipActions(insights)...)

	sort.SliceStable(actions, func(i, j int) bool {
		pi, pj := actionPriorityRank[actions[i].Priority], actionPriorityRank[actions[j].Priority]
		if pi != pj {
			return pi < pj
		}
		return actionTypeRank[actions[i].Type] < actionTypeRank[actions[j].Type]
	})

	if len(actions) > e.cfg.MaxSuggestions {
		actions = actions[:e.cfg.MaxSuggestions]
	}
	if e.logger != nil {
		e.logger.Debug("Generated suggested actions", zap.Int("count", len(actions)))
	}
	return actions
}

// urgentReviewActions fires when the summed urgent count across
// work-relevant categories is positive.
func (e *ActionEngine) urgentReviewActions(summaries []CategorySummary) []SuggestedAction {
	urgent := 0
	for _, s := range summaries {
		if isWorkRelevant(s.Category) {
			urgent += s.UrgentCount
		}
	}
	if urgent == 0 {
		return nil
	}
	return []SuggestedAction{{
		Type:        ActionReviewUrgent,
		Title:       fmt.Sprintf("Review %d urgent emails", urgent),
		Description: "Urgent items are waiting across your work-relevant categories",
		Priority:    ActionPriorityHigh,
		Count:       urgent,
	}}
}

// upcomingEventActions fires when any category carries an upcoming
// event marker, labeling the soonest one. An event inside 24 hours is
// high priority, otherwise medium.
func (e *ActionEngine) upcomingEventActions(summaries []CategorySummary) []SuggestedAction {
	var soonest *time.Time
	var soonestCategory Category
	count := 0
	for _, s := range summaries {
		if s.NextEventAt == nil {
			continue
		}
		count++
		if soonest == nil || s.NextEventAt.Before(*soonest) {
			soonest = s.NextEventAt
			soonestCategory = s.Category
		}
	}
	if soonest == nil {
		return nil
	}

	priority := ActionPriorityMedium
	if soonest.Sub(e.now()) < 24*time.Hour {
		priority = ActionPriorityHigh
	}
	return []SuggestedAction{{
		Type:        ActionReviewEvents,
		Title:       "Review upcoming events",
		Description: fmt.Sprintf("Soonest event is %s (%s)", soonest.Format("Jan 2 15:04"), soonestCategory),
		Priority:    priority,
		Category:    soonestCategory,
		Count:       count,
	}}
}

// archiveActions fires per allow-listed category whose count meets the
// minimum. Counts of 10 or more rank medium, below that low.
func (e *ActionEngine) archiveActions(summaries []CategorySummary) []SuggestedAction {
	byCategory := make(map[Category]CategorySummary, len(summaries))
	for _, s := range summaries {
		byCategory[s.Category] = s
	}

	var actions []SuggestedAction
	for _, cat := range archivableCategories {
		s, ok := byCategory[cat]
		if !ok || s.Count < e.cfg.ArchiveMinCount {
			continue
		}
		priority := ActionPriorityLow
		if s.Count >= 10 {
			priority = ActionPriorityMedium
		}
		actions = append(actions, SuggestedAction{
			Type:        ActionArchiveCategory,
			Title:       fmt.Sprintf("Archive %d %s emails", s.Count, cat),
			Description: fmt.Sprintf("Clear out the %s category in one sweep", cat),
			Priority:    priority,
			Category:    cat,
			Count:       s.Count,
		})
	}
	return actions
}

// relationshipActions fires per suggested-relationship insight whose
// email count meets the minimum. Five or more emails rank medium,
// below that low.
func (e *ActionEngine) relationshipActions(insights []RelationshipInsight) []SuggestedAction {
	var actions []SuggestedAction
	for _, insight := range insights {
		if insight.Type != InsightSuggestedRelationship || insight.EmailCount < e.cfg.RelationshipMinEmails {
			continue
		}
		name := insight.Name
		if name == "" {
			name = insight.Email
		}
		priority := ActionPriorityLow
		if insight.EmailCount >= 5 {
			priority = ActionPriorityMedium
		}
		actions = append(actions, SuggestedAction{
			Type:        ActionAddRelationship,
			Title:       fmt.Sprintf("Add %s as a tracked relationship", name),
			Description: fmt.Sprintf("%d recent emails from %s", insight.EmailCount, insight.Email),
			Priority:    priority,
			Email:       insight.Email,
			Count:       insight.EmailCount,
		})
	}
	return actions
}

func isWorkRelevant(cat Category) bool {
	for _, c := range WorkRelevantCategories {
		if c == cat {
			return true
		}
	}
	return false
}
