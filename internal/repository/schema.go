package repository

import (
	"context"
	"fmt"

	"github.com/rl-arena/trivia-backend/pkg/database"
)

// schema works on both postgres and sqlite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		option_a TEXT NOT NULL,
		option_b TEXT NOT NULL,
		option_c TEXT NOT NULL,
		option_d TEXT NOT NULL,
		correct_option INTEGER NOT NULL CHECK (correct_option BETWEEN 0 AND 3),
		category TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_category ON questions (category)`,
	`CREATE TABLE IF NOT EXISTS answers (
		prompt_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		selected_option INTEGER NOT NULL,
		correct BOOLEAN NOT NULL,
		answered_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_scores (
		user_id TEXT PRIMARY KEY,
		total_attempts INTEGER NOT NULL DEFAULT 0,
		correct_answers INTEGER NOT NULL DEFAULT 0,
		wrong_answers INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_scores_rank ON user_scores (correct_answers DESC, total_attempts ASC)`,
}

// EnsureSchema creates the tables the SQL repositories read and write.
// Production databases are migrated out of band; this is for local setups.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
