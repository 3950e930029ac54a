package meter

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	FFTSize   = 512
	Bins      = FFTSize / 2
	Smoothing = 0.8
	MinDB     = -100.0
	MaxDB     = -30.0
)

// Analyser turns PCM windows into byte-scaled frequency magnitudes.
// Magnitudes are smoothed across frames and mapped from [MinDB, MaxDB]
// onto 0..255.
type Analyser struct {
	fft      *fourier.FFT
	window   []float64
	samples  []int16
	input    []float64
	coeffs   []complex128
	smoothed []float64
}

func NewAnalyser() *Analyser {
	a := &Analyser{
		fft:      fourier.NewFFT(FFTSize),
		window:   blackman(FFTSize),
		samples:  make([]int16, FFTSize),
		input:    make([]float64, FFTSize),
		coeffs:   make([]complex128, FFTSize/2+1),
		smoothed: make([]float64, Bins),
	}
	return a
}

func blackman(n int) []float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}

// Reset clears smoothing history.
func (a *Analyser) Reset() {
	clear(a.smoothed)
}

// Window returns the sample buffer the next Analyse call reads.
func (a *Analyser) Window() []int16 {
	return a.samples
}

// Analyse transforms the current window and writes Bins bytes into dst.
func (a *Analyser) Analyse(dst []byte) {
	for i, s := range a.samples {
		a.input[i] = float64(s) / 32768 * a.window[i]
	}
	a.fft.Coefficients(a.coeffs, a.input)

	for k := 0; k < Bins && k < len(dst); k++ {
		mag := cmplx.Abs(a.coeffs[k]) / FFTSize
		a.smoothed[k] = Smoothing*a.smoothed[k] + (1-Smoothing)*mag
		dst[k] = toByte(a.smoothed[k])
	}
}

func toByte(mag float64) byte {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := 255 * (db - MinDB) / (MaxDB - MinDB)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v)
}
