package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/inboxkit/mail-triage/internal/core"
	"go.uber.org/zap"
)

// SQLStore implements the Store interface over database/sql. The schema
// is shared with the sync subsystem, which owns message ingestion; this
// store only reads and updates the classification envelope.
type SQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// DB exposes the underlying handle for schema setup and tests
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ListWorkRelevant returns messages in the work-relevant categories
// received at or after since, paged by limit/offset
func (s *SQLStore) ListWorkRelevant(ctx context.Context, userID string, since time.Time, limit, offset int) ([]core.Message, error) {
	placeholders := make([]string, len(core.WorkRelevantCategories))
	args := []interface{}{userID, since}
	for i, c := range core.WorkRelevantCategories {
		placeholders[i] = "?"
		args = append(args, string(c))
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT id, user_id, sender, sender_name, subject, body, labels, received_at,
		       category, urgency, analysis_error, analyzed_at, updated_at
		FROM messages
		WHERE user_id = ? AND received_at >= ? AND category IN (%s)
		ORDER BY received_at, id
		LIMIT ? OFFSET ?
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work-relevant messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListRetryCandidates returns never-analyzed messages with an analysis
// error whose last update falls strictly inside (oldest, newest],
// oldest-first. A limit <= 0 means unbounded.
func (s *SQLStore) ListRetryCandidates(ctx context.Context, oldest, newest time.Time, limit int) ([]core.Message, error) {
	query := `
		SELECT id, user_id, sender, sender_name, subject, body, labels, received_at,
		       category, urgency, analysis_error, analyzed_at, updated_at
		FROM messages
		WHERE analysis_error <> '' AND analyzed_at IS NULL
		  AND updated_at > ? AND updated_at <= ?
		ORDER BY updated_at, id
	`
	args := []interface{}{oldest, newest}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query retry candidates: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// UpdateClassification writes the envelope after a successful analysis
func (s *SQLStore) UpdateClassification(ctx context.Context, id string, category core.Category, urgency float64, analyzedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET category = ?, urgency = ?, analysis_error = '', analyzed_at = ?, updated_at = ?
		WHERE id = ?
	`, string(category), urgency, analyzedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}
	return requireRow(result)
}

// UpdateUrgency rewrites the urgency score and refreshes the
// analyzed-at stamp
func (s *SQLStore) UpdateUrgency(ctx context.Context, id string, urgency float64) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET urgency = ?, analyzed_at = ?, updated_at = ? WHERE id = ?
	`, urgency, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update urgency: %w", err)
	}
	return requireRow(result)
}

// SetAnalysisError records a failed analysis attempt
func (s *SQLStore) SetAnalysisError(ctx context.Context, id string, errMsg string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET analysis_error = ?, updated_at = ? WHERE id = ?
	`, errMsg, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set analysis error: %w", err)
	}
	return requireRow(result)
}

// ResetAnalysisState clears the error and analyzed-at fields for a
// group of messages
func (s *SQLStore) ResetAnalysisState(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := []interface{}{time.Now()}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		UPDATE messages
		SET analysis_error = '', analyzed_at = NULL, updated_at = ?
		WHERE id IN (%s)
	`, strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to reset analysis state: %w", err)
	}
	return nil
}

// ListPending returns pending work items created at or after since,
// paged by limit/offset
func (s *SQLStore) ListPending(ctx context.Context, userID string, since time.Time, limit, offset int) ([]core.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, base_urgency, score, deadline, created_at, status, relationship_id
		FROM work_items
		WHERE user_id = ? AND status = ? AND created_at >= ?
		ORDER BY created_at, id
		LIMIT ? OFFSET ?
	`, userID, string(core.StatusPending), since, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending work items: %w", err)
	}
	defer rows.Close()

	var items []core.WorkItem
	for rows.Next() {
		var item core.WorkItem
		var deadline sql.NullTime
		var status string
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.BaseUrgency, &item.Score,
			&deadline, &item.CreatedAt, &status, &item.RelationshipID); err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		item.Status = core.WorkItemStatus(status)
		if deadline.Valid {
			d := deadline.Time
			item.Deadline = &d
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateScore rewrites a work item's urgency score
func (s *SQLStore) UpdateScore(ctx context.Context, id string, score float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE work_items SET score = ? WHERE id = ?
	`, score, id)
	if err != nil {
		return fmt.Errorf("failed to update work item score: %w", err)
	}
	return requireRow(result)
}

// ListRelationships returns all relationship priorities for the user
func (s *SQLStore) ListRelationships(ctx context.Context, userID string) ([]core.RelationshipPriority, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, email, name, tier FROM relationships WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var rels []core.RelationshipPriority
	for rows.Next() {
		var rel core.RelationshipPriority
		var tier string
		if err := rows.Scan(&rel.ID, &rel.UserID, &rel.Email, &rel.Name, &tier); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		rel.Tier = core.RelationshipTier(tier)
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// ListActive returns the ids of all onboarded users
func (s *SQLStore) ListActive(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListLearnedPatterns returns the user's learned sender patterns
func (s *SQLStore) ListLearnedPatterns(ctx context.Context, userID string) ([]core.LearnedPattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, pattern, category, confidence FROM learned_patterns WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query learned patterns: %w", err)
	}
	defer rows.Close()

	var patterns []core.LearnedPattern
	for rows.Next() {
		var p core.LearnedPattern
		var category string
		if err := rows.Scan(&p.UserID, &p.Pattern, &category, &p.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan learned pattern: %w", err)
		}
		p.Category = core.Category(category)
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// CategorySummaries returns per-category rollups for the user
func (s *SQLStore) CategorySummaries(ctx context.Context, userID string) ([]core.CategorySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, total_count, urgent_count, next_event_at
		FROM category_summaries WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query category summaries: %w", err)
	}
	defer rows.Close()

	var summaries []core.CategorySummary
	for rows.Next() {
		var summary core.CategorySummary
		var category string
		var nextEvent sql.NullTime
		if err := rows.Scan(&category, &summary.Count, &summary.UrgentCount, &nextEvent); err != nil {
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}
		summary.Category = core.Category(category)
		if nextEvent.Valid {
			t := nextEvent.Time
			summary.NextEventAt = &t
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// RelationshipInsights returns correspondent observations for the user
func (s *SQLStore) RelationshipInsights(ctx context.Context, userID string) ([]core.RelationshipInsight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT insight_type, email, name, email_count
		FROM relationship_insights WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationship insights: %w", err)
	}
	defer rows.Close()

	var insights []core.RelationshipInsight
	for rows.Next() {
		var insight core.RelationshipInsight
		var insightType string
		if err := rows.Scan(&insightType, &insight.Email, &insight.Name, &insight.EmailCount); err != nil {
			return nil, fmt.Errorf("failed to scan relationship insight: %w", err)
		}
		insight.Type = core.InsightType(insightType)
		insights = append(insights, insight)
	}
	return insights, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]core.Message, error) {
	var messages []core.Message
	for rows.Next() {
		var msg core.Message
		var labels []byte
		var category, analysisError sql.NullString
		var analyzedAt sql.NullTime
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Sender, &msg.SenderName, &msg.Subject, &msg.Body,
			&labels, &msg.ReceivedAt, &category, &msg.Urgency, &analysisError, &analyzedAt, &msg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Category = core.Category(category.String)
		msg.AnalysisError = analysisError.String
		if analyzedAt.Valid {
			t := analyzedAt.Time
			msg.AnalyzedAt = &t
		}
		if len(labels) > 0 {
			if err := json.Unmarshal(labels, &msg.Labels); err != nil {
				return nil, fmt.Errorf("failed to decode message labels: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return nil
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
