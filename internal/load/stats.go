package load

import (
	"sync"
	"time"
)

const defaultWindow = 30 * time.Second

// MovingStats keeps a windowed average of observed wait times. The
// store records how long each read waited for a connection; deciders
// read the average to detect replica pressure. Safe for concurrent
// use.
type MovingStats struct {
	mu     sync.Mutex
	window time.Duration
	bins   []statsBin
}

type statsBin struct {
	at    time.Time
	total time.Duration
	count uint64
}

// NewMovingStats returns stats over the default 30s window.
func NewMovingStats() *MovingStats {
	return NewMovingStatsWindow(defaultWindow)
}

// NewMovingStatsWindow returns stats averaging over the given window.
func NewMovingStatsWindow(window time.Duration) *MovingStats {
	return &MovingStats{window: window}
}

// Add records one wait-time observation.
func (s *MovingStats) Add(wait time.Duration) {
	s.addAt(time.Now(), wait)
}

func (s *MovingStats) addAt(now time.Time, wait time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	n := len(s.bins)
	if n > 0 && now.Sub(s.bins[n-1].at) < time.Second {
		s.bins[n-1].total += wait
		s.bins[n-1].count++
		return
	}
	s.bins = append(s.bins, statsBin{at: now, total: wait, count: 1})
}

// Average reports the mean wait time over the window, zero when there
// are no observations.
func (s *MovingStats) Average() time.Duration {
	return s.averageAt(time.Now())
}

func (s *MovingStats) averageAt(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	var total time.Duration
	var count uint64
	for _, b := range s.bins {
		total += b.total
		count += b.count
	}
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

// expire drops bins older than the window. Callers hold s.mu.
func (s *MovingStats) expire(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.bins) && s.bins[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.bins = append(s.bins[:0], s.bins[i:]...)
	}
}
