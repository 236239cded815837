package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSchedulerInterval is the forced refresh cadence.
const DefaultSchedulerInterval = 30 * time.Second

// LeaderboardScheduler forces a leaderboard refresh on a fixed cadence so
// reads normally hit a fresh snapshot.
type LeaderboardScheduler struct {
	cache    *LeaderboardCache
	logger   *zap.Logger
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewLeaderboardScheduler(cache *LeaderboardCache, interval time.Duration, logger *zap.Logger) *LeaderboardScheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LeaderboardScheduler{
		cache:    cache,
		logger:   logger,
		interval: interval,
	}
}

// Start 주기적 갱신 시작
func (s *LeaderboardScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.logger.Info("Starting LeaderboardScheduler", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.refreshLoop(stop)
}

// Stop 주기적 갱신 중지
func (s *LeaderboardScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.logger.Info("Stopping LeaderboardScheduler")
	s.wg.Wait()
	s.logger.Info("LeaderboardScheduler stopped")
}

func (s *LeaderboardScheduler) refreshLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// 시작 시 한번 실행
	s.runRefresh()

	for {
		select {
		case <-ticker.C:
			s.runRefresh()
		case <-stop:
			return
		}
	}
}

func (s *LeaderboardScheduler) runRefresh() {
	snap, err := s.cache.Get(context.Background(), true)
	if err != nil {
		s.logger.Error("Scheduled leaderboard refresh failed", zap.Error(err))
		return
	}
	s.logger.Debug("Leaderboard refreshed",
		zap.Int("entries", len(snap.Entries)),
		zap.Time("capturedAt", snap.CapturedAt))
}
