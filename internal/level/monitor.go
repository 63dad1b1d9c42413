package level

import (
	"sync"
	"time"
)

// Sampler produces the current normalized level.
type Sampler interface {
	Level() float64
}

// Scheduler runs fn once after the next frame. The returned func cancels it.
type Scheduler interface {
	Schedule(fn func()) (cancel func())
}

// FrameScheduler fires after a fixed frame interval.
type FrameScheduler struct {
	Interval time.Duration
}

func (s FrameScheduler) Schedule(fn func()) func() {
	interval := s.Interval
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	t := time.AfterFunc(interval, fn)
	return func() { t.Stop() }
}

// Monitor samples once per frame while active reports true. Each frame
// schedules the next one only if still active, so the loop ends on its own
// the frame after recording stops.
type Monitor struct {
	sampler Sampler
	sched   Scheduler

	mu     sync.Mutex
	gen    uint64
	cancel func()
}

func NewMonitor(sampler Sampler, sched Scheduler) *Monitor {
	return &Monitor{sampler: sampler, sched: sched}
}

// Start samples immediately and keeps sampling while active() holds.
// Starting again supersedes a previous loop.
func (m *Monitor) Start(active func() bool, publish func(float64)) {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()
	m.frame(gen, active, publish)
}

func (m *Monitor) frame(gen uint64, active func() bool, publish func(float64)) {
	if !m.current(gen) || !active() {
		return
	}
	publish(Clamp(m.sampler.Level()))
	if !active() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.cancel = m.sched.Schedule(func() { m.frame(gen, active, publish) })
}

func (m *Monitor) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// Stop invalidates any pending frame.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
