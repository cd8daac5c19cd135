package rate

import (
	"sync"
	"time"
)

// Limiter is a sliding-window attempt counter keyed by caller-supplied
// composite keys (for example "login:alice@example.com"). Safe for
// concurrent use. Construct with [NewLimiter]; the zero value is not valid.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time

	sweepEvery time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

// NewLimiter returns a Limiter. When sweepEvery is positive a background
// goroutine periodically drops keys whose entries have all aged out, to
// bound memory under many distinct keys; pruning inside Allow is lazy and
// happens regardless. Close stops the sweeper.
func NewLimiter(sweepEvery time.Duration) *Limiter {
	l := &Limiter{
		windows:    make(map[string][]time.Time),
		now:        time.Now,
		sweepEvery: sweepEvery,
		done:       make(chan struct{}),
	}

	if sweepEvery > 0 {
		go l.sweepLoop()
	}

	return l
}

// Allow reports whether another attempt under key fits within limit per
// window, recording the attempt if it does. Rejected attempts are not
// recorded.
func (l *Limiter) Allow(key string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return false
	}

	now := l.now()
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := prune(l.windows[key], cutoff)
	if len(kept) >= limit {
		l.windows[key] = kept
		return false
	}

	l.windows[key] = append(kept, now)
	return true
}

// RetryAfter returns how long until the key's oldest in-window attempt ages
// out, i.e. the soonest a rejected caller could be admitted again. Zero
// when the key is not currently saturated.
func (l *Limiter) RetryAfter(key string, limit int, window time.Duration) time.Duration {
	now := l.now()
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := prune(l.windows[key], cutoff)
	l.windows[key] = kept
	if len(kept) < limit {
		return 0
	}

	return kept[0].Add(window).Sub(now)
}

// Reset forgets all attempts under key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Close stops the background sweeper, if any. Idempotent.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep drops keys whose newest entry is older than the retention horizon.
// Using the newest entry avoids tracking per-key window durations; any key
// idle that long is stale under every window in practical use.
const sweepRetention = time.Hour

func (l *Limiter) sweep() {
	horizon := l.now().Add(-sweepRetention)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entries := range l.windows {
		if len(entries) == 0 || entries[len(entries)-1].Before(horizon) {
			delete(l.windows, key)
		}
	}
}

// prune drops entries at or before the cutoff. Entries are appended in
// time order, so the first kept index bounds the copy.
func prune(entries []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(entries) && !entries[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return entries
	}
	return append([]time.Time(nil), entries[idx:]...)
}
