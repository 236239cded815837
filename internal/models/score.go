package models

import "time"

// UserAggregate 사용자별 누적 점수
type UserAggregate struct {
	UserID         string    `json:"userId" db:"user_id"`
	TotalAttempts  int       `json:"totalAttempts" db:"total_attempts"`
	CorrectAnswers int       `json:"correctAnswers" db:"correct_answers"`
	WrongAnswers   int       `json:"wrongAnswers" db:"wrong_answers"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty" db:"updated_at"`
}

// Accuracy returns correct/total, or 0 for a user with no attempts.
func (a UserAggregate) Accuracy() float64 {
	if a.TotalAttempts == 0 {
		return 0
	}
	return float64(a.CorrectAnswers) / float64(a.TotalAttempts)
}

// Ranked reports whether the user has at least one attempt.
func (a UserAggregate) Ranked() bool {
	return a.TotalAttempts > 0
}

// RankResult 특정 시점의 순위 (저장하지 않음)
type RankResult struct {
	UserID         string `json:"userId"`
	Rank           int    `json:"rank"`
	CorrectAnswers int    `json:"correctAnswers"`
	TotalAttempts  int    `json:"totalAttempts"`
}

// Attempt is one judged answer to an issued prompt.
type Attempt struct {
	PromptID       string    `json:"promptId" db:"prompt_id"`
	UserID         string    `json:"userId" db:"user_id"`
	QuestionID     string    `json:"questionId" db:"question_id"`
	SelectedOption int       `json:"selectedOption" db:"selected_option"`
	Correct        bool      `json:"correct" db:"correct"`
	AnsweredAt     time.Time `json:"answeredAt" db:"answered_at"`
}
