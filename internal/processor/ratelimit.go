package processor

import "time"

// rateLimiter enforces a per-trader cap over a sliding window. Admission
// is checked against the pruned window before the new timestamp is
// appended, so a full window rejects until an old entry ages out.
type rateLimiter struct {
	limit   int
	window  time.Duration
	entries map[string][]time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string][]time.Time),
	}
}

// Admit reports whether trader may execute at now, recording the
// admission when it does. Entries exactly window old still count.
func (l *rateLimiter) Admit(trader string, now time.Time) bool {
	cutoff := now.Add(-l.window)

	kept := l.entries[trader][:0]
	for _, ts := range l.entries[trader] {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.entries[trader] = kept
		return false
	}
	l.entries[trader] = append(kept, now)
	return true
}
