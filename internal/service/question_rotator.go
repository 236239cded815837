package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl-arena/trivia-backend/internal/models"
	"github.com/rl-arena/trivia-backend/internal/repository"
)

// RecentCapacity is how many served ids a session remembers across refills.
const RecentCapacity = 50

// catalog is an immutable view of the question store, swapped on reload.
type catalog struct {
	byID       map[string]models.Question
	ids        []string
	byCategory map[string][]string
	loadedAt   time.Time
}

func newCatalog(questions []models.Question, now time.Time) *catalog {
	c := &catalog{
		byID:       make(map[string]models.Question, len(questions)),
		ids:        make([]string, 0, len(questions)),
		byCategory: make(map[string][]string),
		loadedAt:   now,
	}
	for _, q := range questions {
		if _, dup := c.byID[q.ID]; dup {
			continue
		}
		c.byID[q.ID] = q
		c.ids = append(c.ids, q.ID)
		if q.Category != "" {
			c.byCategory[q.Category] = append(c.byCategory[q.Category], q.ID)
		}
	}
	return c
}

// rotationState 세션별 출제 상태
type rotationState struct {
	mu        sync.Mutex
	recent    []string
	recentSet map[string]int
	available []string
	last      string
}

func newRotationState() *rotationState {
	return &rotationState{recentSet: make(map[string]int)}
}

func (s *rotationState) remember(id string) {
	s.recent = append(s.recent, id)
	s.recentSet[id]++
	if len(s.recent) > RecentCapacity {
		oldest := s.recent[0]
		s.recent = s.recent[1:]
		if s.recentSet[oldest]--; s.recentSet[oldest] <= 0 {
			delete(s.recentSet, oldest)
		}
	}
	s.last = id
}

// refill repopulates the pool for a new cycle.
func (s *rotationState) refill(ids []string) {
	pool := make([]string, 0, len(ids))
	switch {
	case len(ids) < 2:
		pool = append(pool, ids...)
	default:
		for _, id := range ids {
			if _, seen := s.recentSet[id]; !seen {
				pool = append(pool, id)
			}
		}
		// recent가 전체 풀을 덮으면 직전 문제만 제외
		if len(pool) == 0 {
			for _, id := range ids {
				if id != s.last {
					pool = append(pool, id)
				}
			}
		}
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	s.available = pool
}

type nextOptions struct {
	category    string
	hasCategory bool
}

// NextOption customizes a single Next call.
type NextOption func(*nextOptions)

// WithCategory restricts selection to one category. Session state is not used.
func WithCategory(name string) NextOption {
	return func(o *nextOptions) {
		o.category = name
		o.hasCategory = true
	}
}

// RotatorOption configures a QuestionRotator.
type RotatorOption func(*QuestionRotator)

func WithRotatorLogger(logger *zap.Logger) RotatorOption {
	return func(r *QuestionRotator) { r.logger = logger }
}

// WithResetHook is called every time a session pool is refilled.
func WithResetHook(fn func()) RotatorOption {
	return func(r *QuestionRotator) { r.onReset = fn }
}

// QuestionRotator hands out questions per session without repeating one
// until the session's pool is exhausted. Next never does I/O; the catalog
// is loaded by Reload.
type QuestionRotator struct {
	repo    repository.QuestionRepository
	logger  *zap.Logger
	onReset func()
	now     func() time.Time

	catalog atomic.Pointer[catalog]

	mu       sync.RWMutex
	sessions map[string]*rotationState

	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewQuestionRotator(repo repository.QuestionRepository, opts ...RotatorOption) *QuestionRotator {
	r := &QuestionRotator{
		repo:     repo,
		logger:   zap.NewNop(),
		now:      time.Now,
		sessions: make(map[string]*rotationState),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.catalog.Store(newCatalog(nil, time.Time{}))
	return r
}

// Reload replaces the catalog with the repository's current questions.
// Invalid questions are skipped. On error the previous catalog stays.
func (r *QuestionRotator) Reload(ctx context.Context) error {
	questions, err := r.repo.AllQuestions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}

	valid := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			r.logger.Warn("Skipping invalid question", zap.String("questionId", q.ID), zap.Error(err))
			continue
		}
		valid = append(valid, q)
	}

	c := newCatalog(valid, r.now())
	r.catalog.Store(c)
	r.logger.Info("Question catalog loaded",
		zap.Int("questions", len(c.ids)),
		zap.Int("categories", len(c.byCategory)))
	return nil
}

// Next returns the next question for the session.
func (r *QuestionRotator) Next(ctx context.Context, sessionID string, opts ...NextOption) (models.Question, error) {
	if err := ctx.Err(); err != nil {
		return models.Question{}, err
	}

	var o nextOptions
	for _, opt := range opts {
		opt(&o)
	}

	cat := r.catalog.Load()
	if o.hasCategory {
		return r.nextInCategory(cat, o.category)
	}
	if len(cat.ids) == 0 {
		return models.Question{}, ErrQuestionPoolEmpty
	}

	state := r.session(sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	// 리로드로 사라진 id는 건너뜀
	for attempts := 0; attempts < 2; {
		if len(state.available) == 0 {
			state.refill(cat.ids)
			attempts++
			if r.onReset != nil {
				r.onReset()
			}
		}
		for len(state.available) > 0 {
			id := state.available[len(state.available)-1]
			state.available = state.available[:len(state.available)-1]
			if q, ok := cat.byID[id]; ok {
				state.remember(id)
				return q, nil
			}
		}
	}
	return models.Question{}, ErrQuestionPoolEmpty
}

func (r *QuestionRotator) nextInCategory(cat *catalog, name string) (models.Question, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Question{}, ErrInvalidCategory
	}
	ids, ok := cat.byCategory[name]
	if !ok {
		return models.Question{}, ErrInvalidCategory
	}
	if len(ids) == 0 {
		return models.Question{}, ErrQuestionPoolEmpty
	}
	return cat.byID[ids[rand.Intn(len(ids))]], nil
}

func (r *QuestionRotator) session(sessionID string) *rotationState {
	r.mu.RLock()
	state, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		return state
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok = r.sessions[sessionID]; ok {
		return state
	}
	state = newRotationState()
	r.sessions[sessionID] = state
	return state
}

// Evict drops a session's rotation state. Returns false if it was unknown.
func (r *QuestionRotator) Evict(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	delete(r.sessions, sessionID)
	return true
}

// ActiveSessions 추적 중인 세션 수
func (r *QuestionRotator) ActiveSessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Categories returns the catalog's category names, sorted.
func (r *QuestionRotator) Categories() []string {
	cat := r.catalog.Load()
	names := make([]string, 0, len(cat.byCategory))
	for name := range cat.byCategory {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RotatorStats 출제 상태 통계
type RotatorStats struct {
	Questions      int       `json:"questions"`
	Categories     int       `json:"categories"`
	ActiveSessions int       `json:"activeSessions"`
	LoadedAt       time.Time `json:"loadedAt"`
}

func (r *QuestionRotator) Stats() RotatorStats {
	cat := r.catalog.Load()
	return RotatorStats{
		Questions:      len(cat.ids),
		Categories:     len(cat.byCategory),
		ActiveSessions: r.ActiveSessions(),
		LoadedAt:       cat.loadedAt,
	}
}

// Start 주기적 카탈로그 리로드 시작
func (r *QuestionRotator) Start(interval time.Duration) {
	r.runMu.Lock()
	if r.running || interval <= 0 {
		r.runMu.Unlock()
		return
	}
	r.running = true
	r.stopChan = make(chan struct{})
	stop := r.stopChan
	r.runMu.Unlock()

	r.logger.Info("Starting question reload loop", zap.Duration("interval", interval))

	r.wg.Add(1)
	go r.reloadLoop(interval, stop)
}

// Stop 리로드 루프 중지
func (r *QuestionRotator) Stop() {
	r.runMu.Lock()
	if !r.running {
		r.runMu.Unlock()
		return
	}
	r.running = false
	close(r.stopChan)
	r.runMu.Unlock()

	r.wg.Wait()
	r.logger.Info("Question reload loop stopped")
}

func (r *QuestionRotator) reloadLoop(interval time.Duration, stop <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval/2)
			if err := r.Reload(ctx); err != nil {
				r.logger.Error("Failed to reload questions", zap.Error(err))
			}
			cancel()
		case <-stop:
			return
		}
	}
}
