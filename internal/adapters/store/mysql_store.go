package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		sender VARCHAR(255) NOT NULL,
		sender_name VARCHAR(255) NOT NULL DEFAULT '',
		subject TEXT,
		body MEDIUMTEXT,
		labels TEXT,
		received_at DATETIME NOT NULL,
		category VARCHAR(32) NOT NULL DEFAULT '',
		urgency DOUBLE NOT NULL DEFAULT 0,
		analysis_error TEXT,
		analyzed_at DATETIME NULL,
		updated_at DATETIME NOT NULL,
		INDEX idx_messages_user_category (user_id, category, received_at),
		INDEX idx_messages_retry (analyzed_at, updated_at)
	)`,
	`CREATE TABLE IF NOT EXISTS work_items (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		title VARCHAR(512) NOT NULL DEFAULT '',
		base_urgency DOUBLE NOT NULL DEFAULT 0,
		score DOUBLE NOT NULL DEFAULT 0,
		deadline DATETIME NULL,
		created_at DATETIME NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		relationship_id VARCHAR(64) NOT NULL DEFAULT '',
		INDEX idx_work_items_pending (user_id, status, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS relationships (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		tier VARCHAR(16) NOT NULL DEFAULT 'normal',
		INDEX idx_relationships_user (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS learned_patterns (
		user_id VARCHAR(64) NOT NULL,
		pattern VARCHAR(255) NOT NULL,
		category VARCHAR(32) NOT NULL,
		confidence DOUBLE NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, pattern)
	)`,
	`CREATE TABLE IF NOT EXISTS category_summaries (
		user_id VARCHAR(64) NOT NULL,
		category VARCHAR(32) NOT NULL,
		total_count INT NOT NULL DEFAULT 0,
		urgent_count INT NOT NULL DEFAULT 0,
		next_event_at DATETIME NULL,
		PRIMARY KEY (user_id, category)
	)`,
	`CREATE TABLE IF NOT EXISTS relationship_insights (
		user_id VARCHAR(64) NOT NULL,
		insight_type VARCHAR(64) NOT NULL,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		email_count INT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, insight_type, email)
	)`,
}

// NewMySQLStore opens a MySQL-backed store and creates the schema if it
// does not exist. Timestamps are scanned as time.Time, so parseTime is
// forced on in the DSN.
func NewMySQLStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	for _, stmt := range mysqlSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	logger.Info("MySQL store opened")
	return &SQLStore{db: db, logger: logger}, nil
}
