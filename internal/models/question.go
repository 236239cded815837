package models

import (
	"errors"
	"strings"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

var ErrInvalidQuestion = errors.New("invalid question")

// Question 객관식 퀴즈 문제. 콘텐츠 저장소에서만 생성/수정된다.
type Question struct {
	ID            string              `json:"id" db:"id" bson:"_id"`
	Text          string              `json:"text" db:"text" bson:"text"`
	Options       [OptionCount]string `json:"options" db:"-" bson:"options"`
	CorrectOption int                 `json:"-" db:"correct_option" bson:"correctOption"`
	Category      string              `json:"category,omitempty" db:"category" bson:"category,omitempty"`
}

// Validate checks the invariants the rotator relies on.
func (q Question) Validate() error {
	if q.ID == "" {
		return errors.Join(ErrInvalidQuestion, errors.New("empty id"))
	}
	if strings.TrimSpace(q.Text) == "" {
		return errors.Join(ErrInvalidQuestion, errors.New("empty text"))
	}
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return errors.Join(ErrInvalidQuestion, errors.New("blank option"))
		}
	}
	if q.CorrectOption < 0 || q.CorrectOption >= OptionCount {
		return errors.Join(ErrInvalidQuestion, errors.New("correct option out of range"))
	}
	return nil
}

// IsCorrect reports whether option is the right answer.
func (q Question) IsCorrect(option int) bool {
	return option == q.CorrectOption
}
