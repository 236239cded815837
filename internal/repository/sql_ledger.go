package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rl-arena/trivia-backend/internal/models"
	"github.com/rl-arena/trivia-backend/pkg/database"
)

const aggregateColumns = `user_id, total_attempts, correct_answers, wrong_answers, updated_at`

// SQLScoreLedger stores answers and per-user counters in postgres or sqlite.
type SQLScoreLedger struct {
	db      *database.DB
	timeout time.Duration
	now     func() time.Time
}

// NewSQLScoreLedger builds a ledger; every call is bounded by timeout when > 0.
func NewSQLScoreLedger(db *database.DB, timeout time.Duration) *SQLScoreLedger {
	return &SQLScoreLedger{db: db, timeout: timeout, now: time.Now}
}

func (l *SQLScoreLedger) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

// RecordAttempt 답변 기록 + 누적 점수 갱신 (한 트랜잭션)
func (l *SQLScoreLedger) RecordAttempt(ctx context.Context, attempt models.Attempt) error {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	if attempt.AnsweredAt.IsZero() {
		attempt.AnsweredAt = l.now()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// prompt 없는 시도는 중복 검사 없이 점수만 반영
	if attempt.PromptID != "" {
		res, err := tx.ExecContext(ctx, l.db.Rebind(`
			INSERT INTO answers (prompt_id, user_id, question_id, selected_option, correct, answered_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (prompt_id) DO NOTHING
		`), attempt.PromptID, attempt.UserID, attempt.QuestionID, attempt.SelectedOption, attempt.Correct, attempt.AnsweredAt)
		if err != nil {
			return fmt.Errorf("failed to insert answer: %w", err)
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if inserted == 0 {
			return ErrDuplicateAttempt
		}
	}

	correct, wrong := 0, 1
	if attempt.Correct {
		correct, wrong = 1, 0
	}

	_, err = tx.ExecContext(ctx, l.db.Rebind(`
		INSERT INTO user_scores (user_id, total_attempts, correct_answers, wrong_answers, updated_at)
		VALUES ($1, 1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			total_attempts = user_scores.total_attempts + 1,
			correct_answers = user_scores.correct_answers + EXCLUDED.correct_answers,
			wrong_answers = user_scores.wrong_answers + EXCLUDED.wrong_answers,
			updated_at = EXCLUDED.updated_at
	`), attempt.UserID, correct, wrong, attempt.AnsweredAt)
	if err != nil {
		return fmt.Errorf("failed to update user score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit answer: %w", err)
	}

	return nil
}

// Aggregate 사용자 누적 점수 조회
func (l *SQLScoreLedger) Aggregate(ctx context.Context, userID string) (models.UserAggregate, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	query := `SELECT ` + aggregateColumns + ` FROM user_scores WHERE user_id = $1`

	var agg models.UserAggregate
	err := l.db.QueryRowContext(ctx, l.db.Rebind(query), userID).Scan(
		&agg.UserID,
		&agg.TotalAttempts,
		&agg.CorrectAnswers,
		&agg.WrongAnswers,
		&agg.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return models.UserAggregate{UserID: userID}, nil
	}

	if err != nil {
		return models.UserAggregate{}, fmt.Errorf("failed to find user score: %w", err)
	}

	return agg, nil
}

// TopN 상위 n명 조회
func (l *SQLScoreLedger) TopN(ctx context.Context, n, offset int) ([]models.UserAggregate, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	query := `
		SELECT ` + aggregateColumns + `
		FROM user_scores
		WHERE total_attempts > 0
		ORDER BY correct_answers DESC, total_attempts ASC, user_id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := l.db.QueryContext(ctx, l.db.Rebind(query), n, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	aggregates := make([]models.UserAggregate, 0, n)
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		aggregates = append(aggregates, agg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaderboard: %w", err)
	}

	return aggregates, nil
}

// AllRanked 순위 대상 전체 순회
func (l *SQLScoreLedger) AllRanked(ctx context.Context, yield func(models.UserAggregate) bool) error {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	query := `SELECT ` + aggregateColumns + ` FROM user_scores WHERE total_attempts > 0`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query ranked users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return err
		}
		if !yield(agg) {
			return nil
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate ranked users: %w", err)
	}

	return nil
}

// CountAhead 나보다 순위가 높은 사용자 수
func (l *SQLScoreLedger) CountAhead(ctx context.Context, self models.UserAggregate) (int, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM user_scores
		WHERE total_attempts > 0
		  AND user_id <> $1
		  AND (correct_answers > $2 OR (correct_answers = $3 AND total_attempts < $4))
	`

	var ahead int
	err := l.db.QueryRowContext(ctx, l.db.Rebind(query),
		self.UserID, self.CorrectAnswers, self.CorrectAnswers, self.TotalAttempts,
	).Scan(&ahead)
	if err != nil {
		return 0, fmt.Errorf("failed to count users ahead: %w", err)
	}

	return ahead, nil
}

func scanAggregate(rows *sql.Rows) (models.UserAggregate, error) {
	var agg models.UserAggregate
	if err := rows.Scan(
		&agg.UserID,
		&agg.TotalAttempts,
		&agg.CorrectAnswers,
		&agg.WrongAnswers,
		&agg.UpdatedAt,
	); err != nil {
		return models.UserAggregate{}, fmt.Errorf("failed to scan user score: %w", err)
	}
	return agg, nil
}
