package service

import (
	"errors"

	"github.com/rl-arena/trivia-backend/internal/repository"
)

// Question rotation errors
var (
	ErrQuestionPoolEmpty = errors.New("no eligible questions")
	ErrInvalidCategory   = errors.New("invalid category")
)

// Ranking errors
var (
	ErrNotRanked         = errors.New("user has no attempts")
	ErrLedgerUnavailable = errors.New("score ledger unavailable")
)

// Quiz errors
var (
	ErrPromptNotFound  = errors.New("prompt not found or expired")
	ErrInvalidOption   = errors.New("option out of range")
	ErrDuplicateAnswer = repository.ErrDuplicateAttempt
)
