package fingerprint

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// HammingWindow returns an n-point Hamming window.
func HammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Spectrogram computes the STFT magnitude spectrogram of mono samples.
// Frames are cfg.WindowSize samples windowed with a Hamming window, advanced
// by cfg.HopSize; each frame keeps the WindowSize/2 positive-frequency
// magnitudes (the Nyquist bin is dropped so bin indices fit FreqBits).
// Returns nil when samples are shorter than one window.
func Spectrogram(samples []float64, cfg Config) [][]float64 {
	if len(samples) < cfg.WindowSize {
		return nil
	}

	window := HammingWindow(cfg.WindowSize)
	numBins := cfg.WindowSize / 2
	numFrames := (len(samples)-cfg.WindowSize)/cfg.HopSize + 1

	spec := make([][]float64, 0, numFrames)
	frame := make([]float64, cfg.WindowSize)

	for start := 0; start+cfg.WindowSize <= len(samples); start += cfg.HopSize {
		for i := 0; i < cfg.WindowSize; i++ {
			frame[i] = samples[start+i] * window[i]
		}

		coeffs := fft.FFTReal(frame)

		mags := make([]float64, numBins)
		for i := 0; i < numBins; i++ {
			mags[i] = math.Hypot(real(coeffs[i]), imag(coeffs[i]))
		}
		spec = append(spec, mags)
	}

	return spec
}
