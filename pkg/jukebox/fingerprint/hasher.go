package fingerprint

// Pair is one landmark hash anchored to a time offset. During indexing the
// owning track id is attached by the store; query pairs stay untagged.
type Pair struct {
	Hash         uint32
	AnchorTimeMs uint32
}

const (
	freqMask  = (1 << FreqBits) - 1
	deltaMask = (1 << DeltaBits) - 1
)

// PackHash packs (anchor bin, target bin, delta ms) into a uint32:
// [ anchor FreqBits | target FreqBits | delta DeltaBits ].
func PackHash(anchorBin, targetBin int, deltaMs uint32) uint32 {
	return uint32(anchorBin&freqMask)<<(FreqBits+DeltaBits) |
		uint32(targetBin&freqMask)<<DeltaBits |
		deltaMs&deltaMask
}

// UnpackHash reverses PackHash.
func UnpackHash(h uint32) (anchorBin, targetBin int, deltaMs uint32) {
	anchorBin = int(h >> (FreqBits + DeltaBits) & freqMask)
	targetBin = int(h >> DeltaBits & freqMask)
	deltaMs = h & deltaMask
	return
}

// PairPeaks forms landmark pairs: each peak as anchor is paired with up to
// cfg.FanOut later peaks whose time delta lies in [MinDeltaMs, MaxDeltaMs].
// Peaks must be ordered by (TimeIdx, FreqIdx), as ExtractPeaks returns them.
func PairPeaks(peaks []Peak, cfg Config) []Pair {
	if len(peaks) < 2 {
		return nil
	}

	pairs := make([]Pair, 0, len(peaks)*cfg.FanOut/2)
	for i, anchor := range peaks {
		taken := 0
		for j := i + 1; j < len(peaks) && taken < cfg.FanOut; j++ {
			delta := peaks[j].TimeMs - anchor.TimeMs
			if delta < cfg.MinDeltaMs {
				continue
			}
			if delta > cfg.MaxDeltaMs {
				break
			}
			pairs = append(pairs, Pair{
				Hash:         PackHash(anchor.FreqIdx, peaks[j].FreqIdx, delta),
				AnchorTimeMs: anchor.TimeMs,
			})
			taken++
		}
	}
	return pairs
}

// SamplePairs returns at most max pairs taken at an even stride, preserving
// order. max <= 0 disables sampling.
func SamplePairs(pairs []Pair, max int) []Pair {
	if max <= 0 || len(pairs) <= max {
		return pairs
	}
	out := make([]Pair, 0, max)
	step := float64(len(pairs)) / float64(max)
	for i := 0; i < max; i++ {
		out = append(out, pairs[int(float64(i)*step)])
	}
	return out
}
