package ratelimit

import (
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	RetryAfter int    `json:"retry_after"` // seconds
	Class      string `json:"class"`
}

// Err converts a rejected decision into a *LimitError.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &LimitError{Class: d.Class, RetryAfter: d.RetryAfter}
}

// recordKey identifies one user/command history.
type recordKey struct {
	userID  string
	command Command
}

// record holds ascending request timestamps for one key.
type record struct {
	mu      sync.Mutex
	stamps  []time.Time
	evicted bool
}

// prune drops timestamps strictly older than cutoff.
func (r *record) prune(cutoff time.Time) {
	i := sort.Search(len(r.stamps), func(i int) bool {
		return !r.stamps[i].Before(cutoff)
	})
	if i > 0 {
		r.stamps = append(r.stamps[:0], r.stamps[i:]...)
	}
}

func (r *record) insert(t time.Time) {
	n := len(r.stamps)
	if n == 0 || !t.Before(r.stamps[n-1]) {
		r.stamps = append(r.stamps, t)
		return
	}
	i := sort.Search(n, func(i int) bool { return r.stamps[i].After(t) })
	r.stamps = append(r.stamps, time.Time{})
	copy(r.stamps[i+1:], r.stamps[i:])
	r.stamps[i] = t
}

type resolvedTier struct {
	class Class
	tier  Tier
}

// RateLimiter is a tiered sliding-window admission controller keyed by
// user and command. Admit never records; Record does.
type RateLimiter struct {
	mu        sync.RWMutex
	records   map[recordKey]*record
	commands  map[Command]resolvedTier
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger

	cleanupInterval time.Duration
	lastCleanup     time.Time
	stopChan        chan struct{}
	wg              sync.WaitGroup
	running         bool
	runMu           sync.Mutex
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) { rl.now = now }
}

// WithLogger sets the logger used by the cleanup loop.
func WithLogger(logger *zap.Logger) Option {
	return func(rl *RateLimiter) { rl.logger = logger }
}

// WithCleanupInterval sets how often StartCleanup sweeps.
func WithCleanupInterval(d time.Duration) Option {
	return func(rl *RateLimiter) {
		if d > 0 {
			rl.cleanupInterval = d
		}
	}
}

// NewRateLimiter validates the policy and builds a limiter.
func NewRateLimiter(policy Policy, opts ...Option) (*RateLimiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	rl := &RateLimiter{
		records:         make(map[recordKey]*record),
		commands:        make(map[Command]resolvedTier, len(policy.Commands)),
		retention:       WindowHour.Duration(),
		now:             time.Now,
		logger:          zap.NewNop(),
		cleanupInterval: 10 * time.Minute,
		stopChan:        make(chan struct{}),
	}
	for cmd, class := range policy.Commands {
		rl.commands[cmd] = resolvedTier{class: class, tier: policy.Tiers[class]}
	}
	for _, opt := range opts {
		opt(rl)
	}
	rl.lastCleanup = rl.now()

	return rl, nil
}

// Admit reports whether userID may run command now. Privileged callers
// bypass every check and unmapped commands are always admitted.
func (rl *RateLimiter) Admit(userID string, command Command, privileged bool) Decision {
	if privileged {
		return Decision{Allowed: true, Class: LabelPrivileged}
	}

	rt, ok := rl.commands[command]
	if !ok {
		return Decision{Allowed: true, Class: LabelUnlimited}
	}

	rl.mu.RLock()
	rec := rl.records[recordKey{userID: userID, command: command}]
	rl.mu.RUnlock()

	if rec == nil {
		return Decision{Allowed: true, Class: string(rt.class)}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := rl.now()
	rec.prune(now.Add(-rl.retention))

	return evaluate(rec.stamps, rt, now)
}

// evaluate checks the minute window, then the hour window if finite.
func evaluate(stamps []time.Time, rt resolvedTier, now time.Time) Decision {
	minuteStart := now.Add(-WindowMinute.Duration())
	first := sort.Search(len(stamps), func(i int) bool {
		return stamps[i].After(minuteStart)
	})

	if len(stamps)-first >= rt.tier.PerMinute {
		return Decision{
			Class:      string(rt.class) + "_" + string(WindowMinute),
			RetryAfter: retryAfter(WindowMinute.Duration(), now.Sub(stamps[first])),
		}
	}

	if rt.tier.HasHourlyLimit() && len(stamps) >= rt.tier.PerHour {
		return Decision{
			Class:      string(rt.class) + "_" + string(WindowHour),
			RetryAfter: retryAfter(WindowHour.Duration(), now.Sub(stamps[0])),
		}
	}

	return Decision{Allowed: true, Class: string(rt.class)}
}

func retryAfter(window, age time.Duration) int {
	secs := int(math.Ceil((window - age).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Record stores one request timestamp for userID/command.
func (rl *RateLimiter) Record(userID string, command Command) {
	if _, ok := rl.commands[command]; !ok {
		return
	}

	key := recordKey{userID: userID, command: command}
	for {
		rec := rl.getRecord(key)

		rec.mu.Lock()
		if rec.evicted {
			// swept between lookup and lock
			rec.mu.Unlock()
			continue
		}
		now := rl.now()
		rec.prune(now.Add(-rl.retention))
		rec.insert(now)
		rec.mu.Unlock()
		return
	}
}

// getRecord gets or creates the record for key.
func (rl *RateLimiter) getRecord(key recordKey) *record {
	rl.mu.RLock()
	rec, exists := rl.records[key]
	rl.mu.RUnlock()

	if exists {
		return rec
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	rec, exists = rl.records[key]
	if exists {
		return rec
	}

	rec = &record{}
	rl.records[key] = rec
	return rec
}

// Usage returns how many requests are counted in each window.
func (rl *RateLimiter) Usage(userID string, command Command) (minute, hour int) {
	rl.mu.RLock()
	rec := rl.records[recordKey{userID: userID, command: command}]
	rl.mu.RUnlock()

	if rec == nil {
		return 0, 0
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := rl.now()
	rec.prune(now.Add(-rl.retention))
	minuteStart := now.Add(-WindowMinute.Duration())
	for _, ts := range rec.stamps {
		if ts.After(minuteStart) {
			minute++
		}
	}
	return minute, len(rec.stamps)
}

// Sweep prunes every record and removes the ones left empty.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.retention)
	removed := 0
	for key, rec := range rl.records {
		rec.mu.Lock()
		rec.prune(cutoff)
		if len(rec.stamps) == 0 {
			rec.evicted = true
			delete(rl.records, key)
			removed++
		}
		rec.mu.Unlock()
	}

	rl.lastCleanup = now
	return removed
}

// StartCleanup runs Sweep on the cleanup interval until Stop.
func (rl *RateLimiter) StartCleanup() {
	rl.runMu.Lock()
	if rl.running {
		rl.runMu.Unlock()
		return
	}
	rl.running = true
	rl.runMu.Unlock()

	rl.wg.Add(1)
	go rl.cleanupLoop()
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.runMu.Lock()
	if !rl.running {
		rl.runMu.Unlock()
		return
	}
	rl.running = false
	rl.runMu.Unlock()

	close(rl.stopChan)
	rl.wg.Wait()
}

func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := rl.Sweep()
			rl.logger.Debug("Rate limit sweep finished",
				zap.Int("removed", removed),
				zap.Int("active", rl.Len()))
		case <-rl.stopChan:
			return
		}
	}
}

// Reset forgets every record of userID.
func (rl *RateLimiter) Reset(userID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, rec := range rl.records {
		if key.userID != userID {
			continue
		}
		rec.mu.Lock()
		rec.evicted = true
		rec.mu.Unlock()
		delete(rl.records, key)
	}
}

// Len returns the number of tracked user/command records.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.records)
}

// GetStats returns statistics about the rate limiter
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return map[string]interface{}{
		"active_records": len(rl.records),
		"commands":       len(rl.commands),
		"retention":      rl.retention.String(),
		"last_cleanup":   rl.lastCleanup,
	}
}
