package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rl-arena/trivia-backend/internal/models"
)

// MemoryScoreLedger is a process-local ScoreLedger for development and tests.
type MemoryScoreLedger struct {
	mu       sync.RWMutex
	scores   map[string]*models.UserAggregate
	answered map[string]struct{}
	now      func() time.Time
}

func NewMemoryScoreLedger() *MemoryScoreLedger {
	return &MemoryScoreLedger{
		scores:   make(map[string]*models.UserAggregate),
		answered: make(map[string]struct{}),
		now:      time.Now,
	}
}

func (l *MemoryScoreLedger) RecordAttempt(ctx context.Context, attempt models.Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if attempt.PromptID != "" {
		if _, seen := l.answered[attempt.PromptID]; seen {
			return ErrDuplicateAttempt
		}
		l.answered[attempt.PromptID] = struct{}{}
	}

	agg, ok := l.scores[attempt.UserID]
	if !ok {
		agg = &models.UserAggregate{UserID: attempt.UserID}
		l.scores[attempt.UserID] = agg
	}
	agg.TotalAttempts++
	if attempt.Correct {
		agg.CorrectAnswers++
	} else {
		agg.WrongAnswers++
	}
	agg.UpdatedAt = l.now()

	return nil
}

func (l *MemoryScoreLedger) Aggregate(ctx context.Context, userID string) (models.UserAggregate, error) {
	if err := ctx.Err(); err != nil {
		return models.UserAggregate{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if agg, ok := l.scores[userID]; ok {
		return *agg, nil
	}
	return models.UserAggregate{UserID: userID}, nil
}

func (l *MemoryScoreLedger) TopN(ctx context.Context, n, offset int) ([]models.UserAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := l.snapshot()
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.CorrectAnswers != b.CorrectAnswers {
			return a.CorrectAnswers > b.CorrectAnswers
		}
		if a.TotalAttempts != b.TotalAttempts {
			return a.TotalAttempts < b.TotalAttempts
		}
		return a.UserID < b.UserID
	})

	if offset >= len(ranked) {
		return []models.UserAggregate{}, nil
	}
	ranked = ranked[offset:]
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked, nil
}

func (l *MemoryScoreLedger) AllRanked(ctx context.Context, yield func(models.UserAggregate) bool) error {
	for _, agg := range l.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !yield(agg) {
			return nil
		}
	}
	return nil
}

// snapshot copies the ranked aggregates so callers iterate without the lock.
func (l *MemoryScoreLedger) snapshot() []models.UserAggregate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.UserAggregate, 0, len(l.scores))
	for _, agg := range l.scores {
		if agg.Ranked() {
			out = append(out, *agg)
		}
	}
	return out
}
