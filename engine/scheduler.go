package engine

import (
	"sync"
	"time"
)

// Timer is a cancellable handle for a pending callback. Stop is safe to call more
// than once and reports whether this call cancelled it.
type Timer interface {
	Stop() bool
}

// Scheduler is the engine's only source of time and timers.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Timer
	Every(interval time.Duration, fn func()) Timer
}

/* =========================
   WALL-CLOCK SCHEDULER
========================= */

// RealScheduler runs callbacks on their own goroutines using the runtime timers.
type RealScheduler struct{}

func (RealScheduler) Now() time.Time { return time.Now() }

func (RealScheduler) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func (RealScheduler) Every(interval time.Duration, fn func()) Timer {
	t := &tickerTimer{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go t.loop(fn)
	return t
}

type tickerTimer struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *tickerTimer) loop(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

func (t *tickerTimer) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}

/* =========================
   VIRTUAL-CLOCK SCHEDULER
========================= */

// ManualScheduler only moves when Advance is called. Callbacks run synchronously
// on the caller's goroutine, in due order, with Now set to their due instant.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	due     time.Time
	every   time.Duration
	seq     uint64
	fn      func()
	stopped bool
}

func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) After(d time.Duration, fn func()) Timer {
	return s.add(d, 0, fn)
}

func (s *ManualScheduler) Every(interval time.Duration, fn func()) Timer {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return s.add(interval, interval, fn)
}

func (s *ManualScheduler) add(d, every time.Duration, fn func()) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &manualTimer{s: s, due: s.now.Add(d), every: every, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	was := !t.stopped
	t.stopped = true
	return was
}

// Advance moves the clock forward by d, firing everything due on the way.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.due
		if next.every > 0 {
			next.due = next.due.Add(next.every)
		} else {
			next.stopped = true
		}
		fn := next.fn
		s.mu.Unlock()

		fn()
	}
}

// AdvanceUntil steps the clock by step until cond holds or limit has elapsed.
// It reports whether cond was met.
func (s *ManualScheduler) AdvanceUntil(step, limit time.Duration, cond func() bool) bool {
	for waited := time.Duration(0); waited <= limit; waited += step {
		if cond() {
			return true
		}
		s.Advance(step)
	}
	return cond()
}

// Pending counts timers that can still fire.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (s *ManualScheduler) nextDueLocked(target time.Time) *manualTimer {
	var next *manualTimer
	live := s.timers[:0]
	for _, t := range s.timers {
		if t.stopped {
			continue
		}
		live = append(live, t)
		if t.due.After(target) {
			continue
		}
		if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.seq < next.seq) {
			next = t
		}
	}
	for i := len(live); i < len(s.timers); i++ {
		s.timers[i] = nil
	}
	s.timers = live
	return next
}
