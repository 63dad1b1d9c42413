// Package level turns live PCM into a normalized loudness value.
package level

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyser keeps the most recent window of samples and produces byte-scaled
// frequency bins: Blackman window, FFT, temporal smoothing, then a decibel
// range mapped onto 0..255.
type Analyser struct {
	mu        sync.Mutex
	size      int
	ring      []float64
	pos       int
	window    []float64
	fft       *fourier.FFT
	smoothed  []float64
	minDB     float64
	maxDB     float64
	smoothing float64
}

// Options tunes the analyser. A zero FFTSize or decibel range takes the
// defaults (2048, -100..-30 dB).
type Options struct {
	FFTSize     int
	MinDecibels float64
	MaxDecibels float64
	Smoothing   float64
}

// NewAnalyser builds an analyser. FFTSize is rounded down to a power of two.
func NewAnalyser(opts Options) *Analyser {
	size := opts.FFTSize
	if size < 32 {
		size = 2048
	}
	size = 1 << int(math.Floor(math.Log2(float64(size))))
	if opts.MinDecibels == 0 && opts.MaxDecibels == 0 {
		opts.MinDecibels, opts.MaxDecibels = -100, -30
	}
	if opts.MaxDecibels <= opts.MinDecibels {
		opts.MaxDecibels = opts.MinDecibels + 70
	}
	if opts.Smoothing < 0 || opts.Smoothing >= 1 {
		opts.Smoothing = 0.8
	}
	return &Analyser{
		size:      size,
		ring:      make([]float64, size),
		window:    blackman(size),
		fft:       fourier.NewFFT(size),
		smoothed:  make([]float64, size/2),
		minDB:     opts.MinDecibels,
		maxDB:     opts.MaxDecibels,
		smoothing: opts.Smoothing,
	}
}

// FrequencyBinCount is half the FFT size.
func (a *Analyser) FrequencyBinCount() int { return a.size / 2 }

// WritePCM appends samples to the ring.
func (a *Analyser) WritePCM(pcm []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range pcm {
		a.ring[a.pos] = float64(s) / 32768.0
		a.pos = (a.pos + 1) % a.size
	}
}

// ByteFrequencyData fills dst (len FrequencyBinCount) with the current
// spectrum. dst is allocated when nil.
func (a *Analyser) ByteFrequencyData(dst []uint8) []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()

	bins := a.size / 2
	if len(dst) < bins {
		dst = make([]uint8, bins)
	}
	seq := make([]float64, a.size)
	for i := 0; i < a.size; i++ {
		seq[i] = a.ring[(a.pos+i)%a.size] * a.window[i]
	}
	coeff := a.fft.Coefficients(nil, seq)

	span := a.maxDB - a.minDB
	for k := 0; k < bins; k++ {
		mag := cmplx.Abs(coeff[k]) / float64(a.size)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		db := 20 * math.Log10(a.smoothed[k])
		v := 255 * (db - a.minDB) / span
		switch {
		case math.IsNaN(v) || v <= 0:
			dst[k] = 0
		case v >= 255:
			dst[k] = 255
		default:
			dst[k] = uint8(v)
		}
	}
	return dst[:bins]
}

// Level is the mean byte bin divided by 255, clamped to [0, 1].
func (a *Analyser) Level() float64 {
	return Mean(a.ByteFrequencyData(nil))
}

// Mean reduces byte bins to a normalized magnitude.
func Mean(bins []uint8) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bins {
		sum += float64(b)
	}
	return Clamp(sum / float64(len(bins)) / 255)
}

// Clamp limits v to [0, 1].
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}
