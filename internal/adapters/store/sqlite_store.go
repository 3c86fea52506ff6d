package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		labels TEXT NOT NULL DEFAULT '[]',
		received_at TIMESTAMP NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		urgency REAL NOT NULL DEFAULT 0,
		analysis_error TEXT NOT NULL DEFAULT '',
		analyzed_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_user_category ON messages(user_id, category, received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_retry ON messages(analysis_error, analyzed_at, updated_at)`,
	`CREATE TABLE IF NOT EXISTS work_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		base_urgency REAL NOT NULL DEFAULT 0,
		score REAL NOT NULL DEFAULT 0,
		deadline TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		relationship_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_work_items_pending ON work_items(user_id, status, created_at)`,
	`CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT 'normal'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_relationships_user ON relationships(user_id)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS learned_patterns (
		user_id TEXT NOT NULL,
		pattern TEXT NOT NULL,
		category TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, pattern)
	)`,
	`CREATE TABLE IF NOT EXISTS category_summaries (
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		total_count INTEGER NOT NULL DEFAULT 0,
		urgent_count INTEGER NOT NULL DEFAULT 0,
		next_event_at TIMESTAMP,
		PRIMARY KEY (user_id, category)
	)`,
	`CREATE TABLE IF NOT EXISTS relationship_insights (
		user_id TEXT NOT NULL,
		insight_type TEXT NOT NULL,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		email_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, insight_type, email)
	)`,
}

// NewSQLiteStore opens a SQLite-backed store and creates the schema if
// it does not exist
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	logger.Info("SQLite store opened", zap.String("path", dbPath))
	return &SQLStore{db: db, logger: logger}, nil
}
