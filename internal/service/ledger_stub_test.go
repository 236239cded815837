package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rl-arena/trivia-backend/internal/models"
	"github.com/rl-arena/trivia-backend/internal/repository"
)

var errStoreDown = errors.New("store down")

// stubLedger wraps the memory ledger with call counters, failure injection
// and an optional gate that blocks TopN until released.
type stubLedger struct {
	*repository.MemoryScoreLedger

	topCalls      int32
	allRankedCall int32

	mu      sync.Mutex
	failTop bool
	failAgg bool
	gate    chan struct{}
	entered chan struct{}
}

func newStubLedger() *stubLedger {
	return &stubLedger{MemoryScoreLedger: repository.NewMemoryScoreLedger()}
}

func (s *stubLedger) setFailTop(fail bool) {
	s.mu.Lock()
	s.failTop = fail
	s.mu.Unlock()
}

// block makes the next TopN calls wait until the returned func is called.
func (s *stubLedger) block() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	s.entered = make(chan struct{}, 64)
	gate := s.gate
	return s.entered, func() { close(gate) }
}

func (s *stubLedger) TopN(ctx context.Context, n, offset int) ([]models.UserAggregate, error) {
	atomic.AddInt32(&s.topCalls, 1)

	s.mu.Lock()
	gate, entered, fail := s.gate, s.entered, s.failTop
	s.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errStoreDown
	}
	return s.MemoryScoreLedger.TopN(ctx, n, offset)
}

func (s *stubLedger) Aggregate(ctx context.Context, userID string) (models.UserAggregate, error) {
	s.mu.Lock()
	fail := s.failAgg
	s.mu.Unlock()
	if fail {
		return models.UserAggregate{}, errStoreDown
	}
	return s.MemoryScoreLedger.Aggregate(ctx, userID)
}

func (s *stubLedger) AllRanked(ctx context.Context, yield func(models.UserAggregate) bool) error {
	atomic.AddInt32(&s.allRankedCall, 1)
	return s.MemoryScoreLedger.AllRanked(ctx, yield)
}

func (s *stubLedger) TopCalls() int {
	return int(atomic.LoadInt32(&s.topCalls))
}

// seed records correct/total attempts for user.
func (s *stubLedger) seed(t *testing.T, user string, correct, total int) {
	t.Helper()
	for i := 0; i < total; i++ {
		require.NoError(t, s.RecordAttempt(context.Background(), models.Attempt{
			PromptID: fmt.Sprintf("seed-%s-%d", user, i),
			UserID:   user,
			Correct:  i < correct,
		}))
	}
}
