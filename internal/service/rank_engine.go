package service

import (
	"context"
	"fmt"

	"github.com/rl-arena/trivia-backend/internal/models"
	"github.com/rl-arena/trivia-backend/internal/repository"
)

// Outranks reports whether a ranks strictly above b: more correct answers,
// or as many correct answers in fewer attempts.
func Outranks(a, b models.UserAggregate) bool {
	if a.CorrectAnswers != b.CorrectAnswers {
		return a.CorrectAnswers > b.CorrectAnswers
	}
	return a.TotalAttempts < b.TotalAttempts
}

// RankAmong computes the 1-based rank of self among others. Users without
// attempts and self's own entry are ignored.
func RankAmong(self models.UserAggregate, others []models.UserAggregate) int {
	rank := 1
	for _, other := range others {
		if other.UserID == self.UserID || !other.Ranked() {
			continue
		}
		if Outranks(other, self) {
			rank++
		}
	}
	return rank
}

// RankEngine computes a user's global rank from the ledger on demand.
// Results are point-in-time and not isolated from concurrent answers.
type RankEngine struct {
	ledger repository.ScoreLedger
}

func NewRankEngine(ledger repository.ScoreLedger) *RankEngine {
	return &RankEngine{ledger: ledger}
}

// RankOf returns the user's current rank or ErrNotRanked.
func (e *RankEngine) RankOf(ctx context.Context, userID string) (models.RankResult, error) {
	self, err := e.ledger.Aggregate(ctx, userID)
	if err != nil {
		return models.RankResult{}, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	if !self.Ranked() {
		return models.RankResult{}, ErrNotRanked
	}

	ahead, err := e.countAhead(ctx, self)
	if err != nil {
		return models.RankResult{}, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}

	return models.RankResult{
		UserID:         self.UserID,
		Rank:           ahead + 1,
		CorrectAnswers: self.CorrectAnswers,
		TotalAttempts:  self.TotalAttempts,
	}, nil
}

func (e *RankEngine) countAhead(ctx context.Context, self models.UserAggregate) (int, error) {
	if counter, ok := e.ledger.(repository.RankCounter); ok {
		return counter.CountAhead(ctx, self)
	}

	ahead := 0
	err := e.ledger.AllRanked(ctx, func(other models.UserAggregate) bool {
		if other.UserID != self.UserID && Outranks(other, self) {
			ahead++
		}
		return true
	})
	return ahead, err
}
