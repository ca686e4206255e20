package fingerprint

import (
	"math"
	"testing"
)

// synthTone generates a sine at freq Hz with a single-hump sin^2 envelope so
// that magnitudes vary frame to frame.
func synthTone(freq, seconds float64, sampleRate int) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		env := math.Sin(math.Pi * t / seconds)
		out[i] = 0.6 * env * env * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

// binFor returns the spectrogram bin a frequency lands in.
func binFor(freq float64, cfg Config) int {
	return int(math.Round(freq * float64(cfg.WindowSize) / float64(cfg.SampleRate)))
}

// TestHammingWindow checks shape and symmetry of the analysis window.
func TestHammingWindow(t *testing.T) {
	w := HammingWindow(1024)

	if len(w) != 1024 {
		t.Fatalf("Expected 1024 coefficients, got %d", len(w))
	}
	if math.Abs(w[0]-0.08) > 1e-9 {
		t.Errorf("Expected edge coefficient 0.08, got %f", w[0])
	}
	for i := 0; i < len(w)/2; i++ {
		if math.Abs(w[i]-w[len(w)-1-i]) > 1e-9 {
			t.Errorf("Window not symmetric at index %d", i)
			break
		}
	}
	mid := w[len(w)/2]
	if mid < 0.99 || mid > 1.0 {
		t.Errorf("Expected center coefficient near 1.0, got %f", mid)
	}
}

// TestSpectrogramShape verifies frame count, bin count, and that a pure tone
// concentrates energy in the expected bin.
func TestSpectrogramShape(t *testing.T) {
	cfg := DefaultConfig()
	samples := synthTone(440, 2.0, cfg.SampleRate)

	spec := Spectrogram(samples, cfg)
	if spec == nil {
		t.Fatal("Expected non-nil spectrogram")
	}

	wantFrames := (len(samples)-cfg.WindowSize)/cfg.HopSize + 1
	if len(spec) != wantFrames {
		t.Errorf("Expected %d frames, got %d", wantFrames, len(spec))
	}
	if len(spec[0]) != cfg.WindowSize/2 {
		t.Errorf("Expected %d bins, got %d", cfg.WindowSize/2, len(spec[0]))
	}

	// Check the mid-signal frame where the envelope peaks.
	frame := spec[len(spec)/2]
	maxBin := 0
	for f := range frame {
		if frame[f] > frame[maxBin] {
			maxBin = f
		}
	}
	wantBin := binFor(440, cfg)
	if maxBin < wantBin-1 || maxBin > wantBin+1 {
		t.Errorf("Expected energy at bin %d, found max at %d", wantBin, maxBin)
	}
}

// TestSpectrogramShortInput ensures inputs shorter than one window produce no
// frames.
func TestSpectrogramShortInput(t *testing.T) {
	cfg := DefaultConfig()
	if spec := Spectrogram(make([]float64, cfg.WindowSize-1), cfg); spec != nil {
		t.Errorf("Expected nil spectrogram, got %d frames", len(spec))
	}
	if spec := Spectrogram(nil, cfg); spec != nil {
		t.Error("Expected nil spectrogram for nil input")
	}
}
