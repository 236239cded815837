package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl-arena/trivia-backend/internal/models"
	"github.com/rl-arena/trivia-backend/internal/repository"
	"github.com/rl-arena/trivia-backend/pkg/distributed"
)

const (
	DefaultLeaderboardSize    = 100
	DefaultLeaderboardTTL     = 30 * time.Second
	DefaultRefreshTimeout     = 5 * time.Second
	defaultLeaderboardLockKey = "leaderboard:refresh"
)

// Refresh outcomes reported to the observer.
const (
	RefreshOK      = "ok"
	RefreshError   = "error"
	RefreshSkipped = "skipped"
)

// Locker runs fn only while holding key. RedisLockManager implements it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// CacheOption configures a LeaderboardCache.
type CacheOption func(*LeaderboardCache)

func WithCacheSize(n int) CacheOption {
	return func(c *LeaderboardCache) {
		if n > 0 {
			c.size = n
		}
	}
}

func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *LeaderboardCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRefreshTimeout bounds the ledger calls of one refresh.
func WithRefreshTimeout(d time.Duration) CacheOption {
	return func(c *LeaderboardCache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *LeaderboardCache) { c.now = now }
}

func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *LeaderboardCache) { c.logger = logger }
}

// WithRefreshObserver receives the outcome and duration of every Get that
// needed a refresh.
func WithRefreshObserver(fn func(outcome string, elapsed time.Duration)) CacheOption {
	return func(c *LeaderboardCache) { c.observe = fn }
}

// WithSharedSnapshots lets replicas share refreshes: the lock holder reads
// the ledger and publishes, the others reuse the published snapshot.
func WithSharedSnapshots(store repository.LeaderboardStore, locker Locker) CacheOption {
	return func(c *LeaderboardCache) {
		c.store = store
		c.locker = locker
	}
}

// LeaderboardCache serves a top-N snapshot, refreshing it from the ledger
// when it is older than the TTL. At most one refresh runs at a time; callers
// arriving during a refresh get the current snapshot without waiting.
type LeaderboardCache struct {
	ledger  repository.ScoreLedger
	size    int
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
	observe func(string, time.Duration)

	store   repository.LeaderboardStore
	locker  Locker
	lockKey string

	refreshing atomic.Bool
	snapshot   atomic.Pointer[models.LeaderboardSnapshot]
}

func NewLeaderboardCache(ledger repository.ScoreLedger, opts ...CacheOption) *LeaderboardCache {
	c := &LeaderboardCache{
		ledger:  ledger,
		size:    DefaultLeaderboardSize,
		ttl:     DefaultLeaderboardTTL,
		timeout: DefaultRefreshTimeout,
		now:     time.Now,
		logger:  zap.NewNop(),
		lockKey: defaultLeaderboardLockKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached snapshot, refreshing it first when stale or forced.
// On refresh failure the last good snapshot is returned together with an
// error wrapping ErrLedgerUnavailable.
func (c *LeaderboardCache) Get(ctx context.Context, forceRefresh bool) (models.LeaderboardSnapshot, error) {
	if !forceRefresh {
		if cur, ok := c.fresh(); ok {
			return cur, nil
		}
	}

	// 다른 goroutine이 갱신 중이면 기다리지 않고 현재 스냅샷 반환
	if !c.refreshing.CompareAndSwap(false, true) {
		c.report(RefreshSkipped, 0)
		return c.current(), nil
	}
	defer c.refreshing.Store(false)

	// CAS 직전에 다른 갱신이 끝났을 수 있음
	if !forceRefresh {
		if cur, ok := c.fresh(); ok {
			return cur, nil
		}
	}

	start := time.Now()
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	snap, err := c.fetch(refreshCtx)
	if err != nil {
		c.report(RefreshError, time.Since(start))
		c.logger.Warn("Leaderboard refresh failed, serving last snapshot", zap.Error(err))
		return c.current(), fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}

	c.snapshot.Store(&snap)
	c.report(RefreshOK, time.Since(start))
	return snap, nil
}

// Fresh reports whether snap is younger than the TTL.
func (c *LeaderboardCache) Fresh(snap models.LeaderboardSnapshot) bool {
	return !snap.IsZero() && snap.Age(c.now()) < c.ttl
}

// Refreshing reports whether a refresh is in flight.
func (c *LeaderboardCache) Refreshing() bool {
	return c.refreshing.Load()
}

func (c *LeaderboardCache) fresh() (models.LeaderboardSnapshot, bool) {
	cur := c.snapshot.Load()
	if cur == nil || !c.Fresh(*cur) {
		return models.LeaderboardSnapshot{}, false
	}
	return *cur, true
}

func (c *LeaderboardCache) current() models.LeaderboardSnapshot {
	if cur := c.snapshot.Load(); cur != nil {
		return *cur
	}
	return models.LeaderboardSnapshot{Entries: []models.LeaderboardEntry{}}
}

func (c *LeaderboardCache) report(outcome string, elapsed time.Duration) {
	if c.observe != nil {
		c.observe(outcome, elapsed)
	}
}

func (c *LeaderboardCache) fetch(ctx context.Context) (models.LeaderboardSnapshot, error) {
	if c.store == nil || c.locker == nil {
		return c.fromLedger(ctx)
	}

	var snap models.LeaderboardSnapshot
	var ledgerErr error
	fetched := false
	err := c.locker.WithLock(ctx, c.lockKey, c.timeout, func(ctx context.Context) error {
		snap, ledgerErr = c.fromLedger(ctx)
		if ledgerErr != nil {
			return ledgerErr
		}
		fetched = true
		if err := c.store.Publish(ctx, snap); err != nil {
			c.logger.Warn("Failed to publish leaderboard", zap.Error(err))
		}
		return nil
	})

	switch {
	case fetched:
		// 해제 실패는 TTL로 만료되므로 결과는 그대로 사용
		if err != nil {
			c.logger.Warn("Failed to release leaderboard lock", zap.Error(err))
		}
		return snap, nil
	case ledgerErr != nil:
		return models.LeaderboardSnapshot{}, ledgerErr
	case errors.Is(err, distributed.ErrLockNotAcquired):
		// 다른 인스턴스가 갱신 중: 공유 스냅샷이 fresh하고 더 최신이면 사용
		shared, ok, loadErr := c.store.Load(ctx)
		if loadErr != nil {
			c.logger.Warn("Failed to load shared leaderboard", zap.Error(loadErr))
		} else if ok && c.Fresh(shared) && shared.CapturedAt.After(c.current().CapturedAt) {
			return shared, nil
		}
	default:
		c.logger.Warn("Leaderboard lock unavailable", zap.Error(err))
	}

	return c.fromLedger(ctx)
}

func (c *LeaderboardCache) fromLedger(ctx context.Context) (models.LeaderboardSnapshot, error) {
	top, err := c.ledger.TopN(ctx, c.size, 0)
	if err != nil {
		return models.LeaderboardSnapshot{}, err
	}
	return models.LeaderboardSnapshot{
		Entries:    BuildEntries(top),
		CapturedAt: c.now(),
	}, nil
}

// BuildEntries ranks aggregates already ordered best first. Users tied under
// Outranks share a rank, matching RankEngine.RankOf.
func BuildEntries(ordered []models.UserAggregate) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(ordered))
	var prev models.UserAggregate
	for _, agg := range ordered {
		if !agg.Ranked() {
			continue
		}

		rank := len(entries) + 1
		if len(entries) > 0 && !Outranks(prev, agg) {
			rank = entries[len(entries)-1].Rank
		}
		entries = append(entries, models.LeaderboardEntry{
			Rank:           rank,
			UserID:         agg.UserID,
			CorrectAnswers: agg.CorrectAnswers,
			TotalAttempts:  agg.TotalAttempts,
			Accuracy:       agg.Accuracy(),
		})
		prev = agg
	}
	return entries
}
