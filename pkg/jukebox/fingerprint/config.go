package fingerprint

// Config holds the spectral analysis and hashing tunables.
//
// The landmark scheme trades discriminative power for tolerance to volume and
// EQ changes; hash width (FreqBits + DeltaBits) and the target zone (FanOut,
// MinDeltaMs, MaxDeltaMs) are the accuracy/collision trade-off. Widening the
// zone or narrowing the bit fields raises collision rates; the defaults below
// are a working compromise, not a derived optimum.
type Config struct {
	// SampleRate is the engine processing rate in Hz. Input audio is
	// resampled to this rate on decode.
	SampleRate int

	// WindowSize is the STFT window length in samples. The magnitude
	// spectrum keeps WindowSize/2 bins.
	WindowSize int

	// HopSize is the STFT hop in samples; it sets the time resolution of
	// anchor times (HopSize/SampleRate seconds per frame).
	HopSize int

	// PeakThresholdDB is how far above its band average a band maximum
	// must sit to count as a peak candidate.
	PeakThresholdDB float64

	// MinPeakDB is the absolute magnitude floor; silent and near-silent
	// frames produce no peaks.
	MinPeakDB float64

	// FreqNeighborhood and TimeNeighborhood bound the 2-D local-maximum
	// check around a candidate bin.
	FreqNeighborhood int
	TimeNeighborhood int

	// MaxPeaksPerFrame caps peaks kept per frame, strongest first, to
	// bound hash explosion on dense audio.
	MaxPeaksPerFrame int

	// FanOut is how many forward target peaks each anchor pairs with.
	FanOut int

	// MinDeltaMs / MaxDeltaMs bound the forward pairing window. MaxDeltaMs
	// must fit DeltaBits.
	MinDeltaMs uint32
	MaxDeltaMs uint32
}

// Hash packing layout. FreqBits covers WindowSize/2 bins; DeltaBits covers
// MaxDeltaMs.
const (
	FreqBits  = 9
	DeltaBits = 14
)

// DefaultConfig returns the engine defaults: 11025 Hz mono, 1024-sample
// Hamming window, 256-sample hop.
func DefaultConfig() Config {
	return Config{
		SampleRate:       11025,
		WindowSize:       1024,
		HopSize:          256,
		PeakThresholdDB:  3.0,
		MinPeakDB:        -40.0,
		FreqNeighborhood: 3,
		TimeNeighborhood: 1,
		MaxPeaksPerFrame: 5,
		FanOut:           6,
		MinDeltaMs:       10,
		MaxDeltaMs:       8000,
	}
}

// FrameDurationMs returns the time per STFT frame in milliseconds.
func (c Config) FrameDurationMs() float64 {
	return float64(c.HopSize) * 1000.0 / float64(c.SampleRate)
}
