package audio

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// DefaultFFTSize gives 128 frequency bins per read
	DefaultFFTSize = 256

	defaultSmoothing = 0.8
	defaultMinDB     = -100.0
	defaultMaxDB     = -30.0
)

// Analyser is the analysis tap attached to a capture or output graph.
// Writers push rendered samples; the animation tick reads a time-domain window
// or a smoothed magnitude spectrum. Readings use the same byte scaling as a
// browser AnalyserNode so thresholds tuned there carry over.
type Analyser struct {
	fftSize   int
	smoothing float64
	minDB     float64
	maxDB     float64

	ring *SampleRing
	fft  *fourier.FFT

	mu       sync.Mutex
	window   []float64
	frame    []float32
	windowed []float64
	coeffs   []complex128
	smoothed []float64
}

// NewAnalyser creates an analyser over the last fftSize samples.
// fftSize must be a power of two no smaller than 32.
func NewAnalyser(fftSize int) (*Analyser, error) {
	if fftSize < 32 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("analyser fft size %d must be a power of two >= 32", fftSize)
	}

	a := &Analyser{
		fftSize:   fftSize,
		smoothing: defaultSmoothing,
		minDB:     defaultMinDB,
		maxDB:     defaultMaxDB,
		ring:      NewSampleRing(fftSize),
		fft:       fourier.NewFFT(fftSize),
		window:    blackmanWindow(fftSize),
		frame:     make([]float32, fftSize),
		windowed:  make([]float64, fftSize),
		smoothed:  make([]float64, fftSize/2),
	}
	return a, nil
}

// FFTSize returns the transform size
func (a *Analyser) FFTSize() int {
	return a.fftSize
}

// FrequencyBinCount returns the number of bins produced by ByteFrequencyData
func (a *Analyser) FrequencyBinCount() int {
	return a.fftSize / 2
}

// Write feeds samples into the tap
func (a *Analyser) Write(samples []float32) {
	a.ring.Write(samples)
}

// ByteTimeDomainData fills dst with the most recent samples mapped to bytes centred at 128
func (a *Analyser) ByteTimeDomainData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ring.Snapshot(a.frame)
	offset := a.fftSize - len(dst)
	if offset < 0 {
		offset = 0
	}

	for i := range dst {
		idx := offset + i
		if idx >= a.fftSize {
			dst[i] = 128
			continue
		}
		v := 128 * (1 + float64(a.frame[idx]))
		dst[i] = clampByte(v)
	}
}

// ByteFrequencyData fills dst with the smoothed magnitude spectrum in bytes.
// Bins map linearly from [minDB, maxDB] onto [0, 255]. Each call advances the
// smoothing state, so it should be read once per tick.
func (a *Analyser) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ring.Snapshot(a.frame)
	for i, s := range a.frame {
		a.windowed[i] = float64(s) * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.windowed)

	scale := 255 / (a.maxDB - a.minDB)
	bins := len(a.smoothed)
	for k := 0; k < bins; k++ {
		mag := cmplx.Abs(a.coeffs[k]) / float64(a.fftSize)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		if k >= len(dst) {
			continue
		}

		if a.smoothed[k] <= 0 {
			dst[k] = 0
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		dst[k] = clampByte((db - a.minDB) * scale)
	}
	for k := bins; k < len(dst); k++ {
		dst[k] = 0
	}
}

// Reset drops buffered samples and smoothing history
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ring.Clear()
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}

func blackmanWindow(n int) []float64 {
	const (
		alpha = 0.16
		a0    = 0.5 * (1 - alpha)
		a1    = 0.5
		a2    = 0.5 * alpha
	)

	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}

func clampByte(v float64) byte {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}
