package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl-arena/trivia-backend/internal/models"
	"github.com/rl-arena/trivia-backend/pkg/distributed"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, opts ...CacheOption) (*LeaderboardCache, *stubLedger, *testClock) {
	t.Helper()
	ledger := newStubLedger()
	ledger.seed(t, "a", 10, 12)
	ledger.seed(t, "b", 10, 15)
	ledger.seed(t, "c", 9, 9)

	clock := newTestClock()
	opts = append([]CacheOption{WithCacheClock(clock.Now)}, opts...)
	return NewLeaderboardCache(ledger, opts...), ledger, clock
}

func TestLeaderboardCache_FreshWithinTTL(t *testing.T) {
	cache, ledger, clock := newTestCache(t)
	ctx := context.Background()

	first, err := cache.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.TopCalls())
	require.Len(t, first.Entries, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{first.Entries[0].UserID, first.Entries[1].UserID, first.Entries[2].UserID})

	clock.Advance(5 * time.Second)
	ledger.seed(t, "d", 20, 20)

	second, err := cache.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, ledger.TopCalls(), "fresh snapshot must not touch the ledger")
}

func TestLeaderboardCache_SingleFlight(t *testing.T) {
	cache, ledger, clock := newTestCache(t)
	ctx := context.Background()

	old, err := cache.Get(ctx, false)
	require.NoError(t, err)

	clock.Advance(35 * time.Second)
	entered, release := ledger.block()

	const callers = 50
	var wg sync.WaitGroup
	var returned int32
	results := make([]models.LeaderboardSnapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := cache.Get(ctx, false)
			assert.NoError(t, err)
			results[i] = snap
			atomic.AddInt32(&returned, 1)
		}(i)
	}

	<-entered
	assert.True(t, cache.Refreshing())
	// 갱신 중에 도착한 호출은 기다리지 않고 이전 스냅샷을 받음
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&returned) == callers-1
	}, 2*time.Second, 5*time.Millisecond)

	release()
	wg.Wait()

	assert.Equal(t, 2, ledger.TopCalls(), "exactly one refresh for 50 concurrent callers")
	assert.False(t, cache.Refreshing())

	refreshed := 0
	for _, snap := range results {
		if snap.CapturedAt.Equal(clock.Now()) {
			refreshed++
		} else {
			assert.Equal(t, old.CapturedAt, snap.CapturedAt)
		}
	}
	assert.Equal(t, 1, refreshed)
}

func TestLeaderboardCache_ForceDuringRefreshReturnsStale(t *testing.T) {
	cache, ledger, clock := newTestCache(t)
	ctx := context.Background()

	old, err := cache.Get(ctx, false)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	entered, release := ledger.block()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.Get(ctx, false)
	}()
	<-entered

	snap, err := cache.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, old.CapturedAt, snap.CapturedAt)

	release()
	<-done
	assert.Equal(t, 2, ledger.TopCalls())
}

func TestLeaderboardCache_ForceRefreshesFreshSnapshot(t *testing.T) {
	cache, ledger, clock := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, false)
	require.NoError(t, err)

	clock.Advance(time.Second)
	snap, err := cache.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.TopCalls())
	assert.Equal(t, clock.Now(), snap.CapturedAt)
}

func TestLeaderboardCache_FailureKeepsLastSnapshot(t *testing.T) {
	var outcomes []string
	cache, ledger, clock := newTestCache(t, WithRefreshObserver(func(outcome string, _ time.Duration) {
		outcomes = append(outcomes, outcome)
	}))
	ctx := context.Background()

	good, err := cache.Get(ctx, false)
	require.NoError(t, err)

	clock.Advance(35 * time.Second)
	ledger.setFailTop(true)

	snap, err := cache.Get(ctx, false)
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, good, snap)
	assert.False(t, cache.Refreshing())
	assert.False(t, cache.Fresh(snap))

	// 다음 호출에서 재시도
	ledger.setFailTop(false)
	snap, err = cache.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), snap.CapturedAt)
	assert.Equal(t, 3, ledger.TopCalls())
	assert.Equal(t, []string{RefreshOK, RefreshError, RefreshOK}, outcomes)
}

func TestLeaderboardCache_FirstRefreshFails(t *testing.T) {
	cache, ledger, _ := newTestCache(t)
	ledger.setFailTop(true)

	snap, err := cache.Get(context.Background(), false)
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
	assert.True(t, snap.IsZero())
	assert.NotNil(t, snap.Entries)
}

func TestLeaderboardCache_RefreshTimeout(t *testing.T) {
	cache, ledger, _ := newTestCache(t, WithRefreshTimeout(50*time.Millisecond))
	_, release := ledger.block()
	defer release()

	start := time.Now()
	_, err := cache.Get(context.Background(), false)
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, cache.Refreshing())
}

func TestLeaderboardCache_CallerCancelDoesNotAbortRefresh(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := cache.Get(ctx, false)
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 3)
}

func TestLeaderboardCache_Size(t *testing.T) {
	cache, _, _ := newTestCache(t, WithCacheSize(2))
	snap, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 2)
}

func TestBuildEntries(t *testing.T) {
	entries := BuildEntries([]models.UserAggregate{
		agg("a", 10, 12),
		agg("d", 10, 12),
		agg("b", 10, 15),
		agg("c", 9, 9),
		{UserID: "idle"},
	})

	require.Len(t, entries, 4)
	ranks := []int{entries[0].Rank, entries[1].Rank, entries[2].Rank, entries[3].Rank}
	assert.Equal(t, []int{1, 1, 3, 4}, ranks)
	assert.InDelta(t, 10.0/12.0, entries[0].Accuracy, 1e-9)
}

type stubLocker struct {
	err        error
	releaseErr error
	calls      int
}

func (l *stubLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	l.calls++
	if l.err != nil {
		return l.err
	}
	if err := fn(ctx); err != nil {
		return err
	}
	return l.releaseErr
}

type stubStore struct {
	mu        sync.Mutex
	snap      models.LeaderboardSnapshot
	published int
}

func (s *stubStore) Publish(ctx context.Context, snap models.LeaderboardSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.published++
	return nil
}

func (s *stubStore) Load(ctx context.Context) (models.LeaderboardSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, !s.snap.IsZero(), nil
}

func TestLeaderboardCache_SharedSnapshots(t *testing.T) {
	t.Run("lock holder publishes", func(t *testing.T) {
		store := &stubStore{}
		locker := &stubLocker{}
		cache, ledger, _ := newTestCache(t, WithSharedSnapshots(store, locker))

		snap, err := cache.Get(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, 1, ledger.TopCalls())
		assert.Equal(t, 1, store.published)
		assert.Equal(t, snap, store.snap)
	})

	t.Run("follower reuses published snapshot", func(t *testing.T) {
		clock := newTestClock()
		shared := models.LeaderboardSnapshot{
			Entries:    []models.LeaderboardEntry{{Rank: 1, UserID: "remote"}},
			CapturedAt: clock.Now(),
		}
		store := &stubStore{snap: shared}
		locker := &stubLocker{err: distributed.ErrLockNotAcquired}
		cache, ledger, _ := newTestCache(t, WithSharedSnapshots(store, locker), WithCacheClock(clock.Now))

		snap, err := cache.Get(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, shared, snap)
		assert.Zero(t, ledger.TopCalls())
	})

	t.Run("follower ignores expired published snapshot", func(t *testing.T) {
		store := &stubStore{}
		locker := &stubLocker{err: distributed.ErrLockNotAcquired}
		cache, ledger, clock := newTestCache(t, WithSharedSnapshots(store, locker))
		store.snap = models.LeaderboardSnapshot{
			Entries:    []models.LeaderboardEntry{{Rank: 1, UserID: "remote"}},
			CapturedAt: clock.Now().Add(-55 * time.Second),
		}

		snap, err := cache.Get(context.Background(), false)
		require.NoError(t, err)
		assert.Len(t, snap.Entries, 3)
		assert.True(t, cache.Fresh(snap))
		assert.Equal(t, 1, ledger.TopCalls())

		_, err = cache.Get(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, 1, locker.calls, "fresh snapshot served without another refresh")
		assert.Equal(t, 1, ledger.TopCalls())
	})

	t.Run("release failure keeps the fetched snapshot", func(t *testing.T) {
		store := &stubStore{}
		locker := &stubLocker{releaseErr: distributed.ErrLockNotHeld}
		cache, ledger, _ := newTestCache(t, WithSharedSnapshots(store, locker))

		snap, err := cache.Get(context.Background(), false)
		require.NoError(t, err)
		assert.Len(t, snap.Entries, 3)
		assert.Equal(t, 1, ledger.TopCalls())
		assert.Equal(t, 1, store.published)
	})

	t.Run("follower without newer snapshot reads ledger", func(t *testing.T) {
		store := &stubStore{}
		locker := &stubLocker{err: distributed.ErrLockNotAcquired}
		cache, ledger, _ := newTestCache(t, WithSharedSnapshots(store, locker))

		snap, err := cache.Get(context.Background(), false)
		require.NoError(t, err)
		assert.Len(t, snap.Entries, 3)
		assert.Equal(t, 1, ledger.TopCalls())
	})

	t.Run("lock backend down falls back to ledger", func(t *testing.T) {
		locker := &stubLocker{err: errStoreDown}
		cache, ledger, _ := newTestCache(t, WithSharedSnapshots(&stubStore{}, locker))

		_, err := cache.Get(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, 1, ledger.TopCalls())
	})

	t.Run("ledger failure under lock", func(t *testing.T) {
		store := &stubStore{}
		cache, ledger, _ := newTestCache(t, WithSharedSnapshots(store, &stubLocker{}))
		ledger.setFailTop(true)

		_, err := cache.Get(context.Background(), false)
		assert.ErrorIs(t, err, ErrLedgerUnavailable)
		assert.Zero(t, store.published)
		assert.Equal(t, 1, ledger.TopCalls())
	})
}

func TestLeaderboardScheduler_StartStop(t *testing.T) {
	ledger := newStubLedger()
	ledger.seed(t, "a", 1, 1)
	cache := NewLeaderboardCache(ledger)

	scheduler := NewLeaderboardScheduler(cache, 10*time.Millisecond, nil)
	scheduler.Start()
	scheduler.Start()

	assert.Eventually(t, func() bool {
		return ledger.TopCalls() >= 3
	}, 2*time.Second, 5*time.Millisecond, "forced refresh on every tick")

	scheduler.Stop()
	scheduler.Stop()

	calls := ledger.TopCalls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, ledger.TopCalls())
}
