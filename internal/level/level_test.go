package level

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type task struct {
	fn   func()
	done bool
}

type manualScheduler struct {
	pending   []*task
	cancelled int
}

func (s *manualScheduler) Schedule(fn func()) func() {
	tk := &task{fn: fn}
	s.pending = append(s.pending, tk)
	return func() {
		if !tk.done {
			tk.done = true
			s.cancelled++
		}
	}
}

// tick runs every pending callback once.
func (s *manualScheduler) tick() int {
	tasks := s.pending
	s.pending = nil
	ran := 0
	for _, tk := range tasks {
		if tk.done {
			continue
		}
		tk.done = true
		tk.fn()
		ran++
	}
	return ran
}

type fixedSampler float64

func (f fixedSampler) Level() float64 { return float64(f) }

func sine(n int, freq, rate, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

func TestAnalyserSilenceIsZero(t *testing.T) {
	a := NewAnalyser(Options{FFTSize: 1024})
	a.WritePCM(make([]int16, 1024))
	assert.Equal(t, 0.0, a.Level())
	assert.Equal(t, 512, a.FrequencyBinCount())
}

func TestAnalyserToneRaisesLevel(t *testing.T) {
	a := NewAnalyser(Options{FFTSize: 1024, Smoothing: 0.01})
	a.WritePCM(sine(1024, 440, 16000, 0.9))
	lvl := a.Level()
	assert.Greater(t, lvl, 0.0)
	assert.LessOrEqual(t, lvl, 1.0)

	bins := a.ByteFrequencyData(nil)
	require.Len(t, bins, 512)
	peak := 0
	for i, b := range bins {
		if b > bins[peak] {
			peak = i
		}
	}
	// 440 Hz at 16 kHz with 1024 points lands near bin 28.
	assert.InDelta(t, 28, peak, 2)
}

func TestAnalyserRoundsSizeToPowerOfTwo(t *testing.T) {
	a := NewAnalyser(Options{FFTSize: 1500})
	assert.Equal(t, 512, a.FrequencyBinCount())
}

func TestMeanAndClamp(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 1.0, Mean([]uint8{255, 255}))
	assert.InDelta(t, 0.5, Mean([]uint8{0, 255}), 1e-9)
	assert.Equal(t, 0.0, Clamp(-3))
	assert.Equal(t, 1.0, Clamp(7))
	assert.Equal(t, 0.0, Clamp(math.NaN()))
}

func TestMonitorRunsOnlyWhileActive(t *testing.T) {
	sched := &manualScheduler{}
	m := NewMonitor(fixedSampler(0.4), sched)

	recording := true
	var published []float64
	m.Start(func() bool { return recording }, func(v float64) { published = append(published, v) })

	require.Len(t, published, 1, "first sample is immediate")
	assert.Equal(t, 1, sched.tick())
	assert.Equal(t, 1, sched.tick())
	require.Len(t, published, 3)

	recording = false
	// The frame already scheduled fires but neither publishes nor reschedules.
	assert.Equal(t, 1, sched.tick())
	assert.Len(t, published, 3)
	assert.Equal(t, 0, sched.tick())
}

func TestMonitorClampsPublishedLevel(t *testing.T) {
	sched := &manualScheduler{}
	m := NewMonitor(fixedSampler(3.5), sched)
	var got float64
	m.Start(func() bool { return true }, func(v float64) { got = v })
	assert.Equal(t, 1.0, got)
	m.Stop()
}

func TestMonitorStopInvalidatesPendingFrame(t *testing.T) {
	sched := &manualScheduler{}
	m := NewMonitor(fixedSampler(0.2), sched)
	count := 0
	m.Start(func() bool { return true }, func(float64) { count++ })
	m.Stop()
	assert.Equal(t, 1, sched.cancelled)
	assert.Equal(t, 0, sched.tick())
	assert.Equal(t, 1, count)
}
