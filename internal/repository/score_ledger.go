package repository

import (
	"context"
	"errors"

	"github.com/rl-arena/trivia-backend/internal/models"
)

var ErrDuplicateAttempt = errors.New("prompt already answered")

// ScoreLedger is the persistent per-user score store.
//
// TopN and AllRanked only return users with at least one attempt. TopN is
// ordered by correct answers descending, then attempts ascending, then
// user id.
type ScoreLedger interface {
	// RecordAttempt applies one answer atomically. A second attempt for the
	// same prompt returns ErrDuplicateAttempt and changes nothing. An empty
	// PromptID skips the duplicate check and always counts.
	RecordAttempt(ctx context.Context, attempt models.Attempt) error
	// Aggregate returns the user's counters; unknown users get a zero aggregate.
	Aggregate(ctx context.Context, userID string) (models.UserAggregate, error)
	TopN(ctx context.Context, n, offset int) ([]models.UserAggregate, error)
	// AllRanked streams every ranked user until yield returns false.
	AllRanked(ctx context.Context, yield func(models.UserAggregate) bool) error
}

// RankCounter is implemented by ledgers that can count the users ranked
// ahead of an aggregate without streaming them.
type RankCounter interface {
	CountAhead(ctx context.Context, self models.UserAggregate) (int, error)
}
