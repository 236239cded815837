package repository

import (
	"context"
	"fmt"

	"github.com/rl-arena/trivia-backend/internal/models"
	"github.com/rl-arena/trivia-backend/pkg/database"
)

// QuestionRepository is the read side of the external question store.
type QuestionRepository interface {
	AllQuestions(ctx context.Context) ([]models.Question, error)
	ByCategory(ctx context.Context, category string) ([]models.Question, error)
}

const questionColumns = `id, text, option_a, option_b, option_c, option_d, correct_option, category`

type SQLQuestionRepository struct {
	db *database.DB
}

func NewSQLQuestionRepository(db *database.DB) *SQLQuestionRepository {
	return &SQLQuestionRepository{db: db}
}

// AllQuestions 전체 문제 조회
func (r *SQLQuestionRepository) AllQuestions(ctx context.Context) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions ORDER BY id`
	return r.list(ctx, query)
}

// ByCategory 카테고리별 문제 조회
func (r *SQLQuestionRepository) ByCategory(ctx context.Context, category string) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE category = $1 ORDER BY id`
	return r.list(ctx, query, category)
}

func (r *SQLQuestionRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Question, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		var category *string
		if err := rows.Scan(
			&q.ID,
			&q.Text,
			&q.Options[0],
			&q.Options[1],
			&q.Options[2],
			&q.Options[3],
			&q.CorrectOption,
			&category,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if category != nil {
			q.Category = *category
		}
		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}

	return questions, nil
}
