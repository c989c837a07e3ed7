package upload_test

import (
	"sort"
	"sync"
	"time"

	"evalo/internal/upload"
)

// manualScheduler fires callbacks only when Advance moves its clock past them.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	at      time.Duration
	fn      func()
	fired   bool
	stopped bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) upload.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, at: s.now + d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, firing due callbacks in time order.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for {
		s.mu.Lock()
		pending := make([]*manualTimer, 0, len(s.timers))
		for _, t := range s.timers {
			if !t.fired && !t.stopped && t.at <= target {
				pending = append(pending, t)
			}
		}
		if len(pending) == 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		sort.SliceStable(pending, func(i, j int) bool { return pending[i].at < pending[j].at })
		next := pending[0]
		next.fired = true
		s.now = next.at
		s.mu.Unlock()
		next.fn()
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			count++
		}
	}
	return count
}
