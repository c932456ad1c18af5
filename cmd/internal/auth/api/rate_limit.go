package authapi

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// evaluateWindowThrottle blocks once limit failures fall inside window. The
// retry hint is when the oldest of them leaves the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)
	var (
		count  int
		oldest time.Time
	)
	for _, f := range failures {
		if !f.After(cut) {
			continue
		}
		count++
		if oldest.IsZero() || f.Before(oldest) {
			oldest = f
		}
	}
	if count < limit {
		return false, 0
	}
	return true, oldest.Add(window).Sub(now)
}

// evaluateProgressiveLockout checks tiers in order; the first whose threshold
// is reached inside its duration wins. The lockout runs from the latest failure.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	for _, tier := range tiers {
		if tier.Threshold <= 0 || tier.Duration <= 0 {
			continue
		}
		cut := now.Add(-tier.Duration)
		var (
			count  int
			latest time.Time
		)
		for _, f := range failures {
			if !f.After(cut) {
				continue
			}
			count++
			if f.After(latest) {
				latest = f
			}
		}
		if count >= tier.Threshold {
			return true, latest.Add(tier.Duration).Sub(now)
		}
	}
	return false, 0
}

// failureLog keeps recent failure timestamps per key in memory.
type failureLog struct {
	mu     sync.Mutex
	byKey  map[string][]time.Time
	retain time.Duration
}

func newFailureLog(retain time.Duration) *failureLog {
	return &failureLog{byKey: make(map[string][]time.Time), retain: retain}
}

func (l *failureLog) record(key string, now time.Time) {
	if key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byKey[key] = append(l.prune(key, now), now)
}

func (l *failureLog) failures(key string, now time.Time) []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.prune(key, now)
	out := make([]time.Time, len(kept))
	copy(out, kept)
	return out
}

func (l *failureLog) reset(key string) {
	l.mu.Lock()
	delete(l.byKey, key)
	l.mu.Unlock()
}

// prune must be called with mu held.
func (l *failureLog) prune(key string, now time.Time) []time.Time {
	ts := l.byKey[key]
	cut := now.Add(-l.retain)
	i := sort.Search(len(ts), func(i int) bool { return ts[i].After(cut) })
	ts = ts[i:]
	if len(ts) == 0 {
		delete(l.byKey, key)
		return nil
	}
	l.byKey[key] = ts
	return ts
}

// loginThrottle combines a per-IP window with per-username progressive lockout.
type loginThrottle struct {
	cfg   Config
	byIP  *failureLog
	byKey *failureLog
	tiers []lockoutTier
}

func newLoginThrottle(cfg Config) *loginThrottle {
	tiers := []lockoutTier{
		{Threshold: cfg.LockoutSevereThreshold, Duration: cfg.LockoutSevereDuration},
		{Threshold: cfg.LockoutLongThreshold, Duration: cfg.LockoutLongDuration},
		{Threshold: cfg.LockoutShortThreshold, Duration: cfg.LockoutShortDuration},
	}
	retain := cfg.LoginIPWindow
	for _, t := range tiers {
		if t.Duration > retain {
			retain = t.Duration
		}
	}
	return &loginThrottle{
		cfg:   cfg,
		byIP:  newFailureLog(cfg.LoginIPWindow),
		byKey: newFailureLog(retain),
		tiers: tiers,
	}
}

// check reports whether a login attempt must be refused.
func (t *loginThrottle) check(ip, identifier string, now time.Time) (bool, time.Duration) {
	if ip != "" {
		if blocked, retry := evaluateWindowThrottle(now, t.byIP.failures(ip, now), t.cfg.LoginIPMax, t.cfg.LoginIPWindow); blocked {
			return true, retry
		}
	}
	if identifier != "" {
		return evaluateProgressiveLockout(now, t.byKey.failures(identifier, now), t.tiers)
	}
	return false, 0
}

func (t *loginThrottle) failed(ip, identifier string, now time.Time) {
	t.byIP.record(ip, now)
	t.byKey.record(identifier, now)
}

func (t *loginThrottle) succeeded(identifier string) {
	t.byKey.reset(identifier)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
