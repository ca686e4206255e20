package fingerprint

import (
	"math"
	"sort"
)

// Peak is a local spectral maximum in one analysis frame.
type Peak struct {
	TimeIdx int
	FreqIdx int
	TimeMs  uint32
	MagDB   float64
}

// bandEdges builds logarithmic band boundaries over numBins: [0,10), [10,20),
// [20,40), ... doubling until the bin count is covered.
func bandEdges(numBins int) [][2]int {
	var bands [][2]int
	lo, hi := 0, 10
	for lo < numBins {
		if hi > numBins {
			hi = numBins
		}
		bands = append(bands, [2]int{lo, hi})
		lo = hi
		hi *= 2
	}
	return bands
}

// ExtractPeaks selects spectral peaks from a magnitude spectrogram.
//
// Per frame, each logarithmic band contributes its maximum bin when that bin
// (a) exceeds the band average by cfg.PeakThresholdDB, (b) clears the absolute
// cfg.MinPeakDB floor, and (c) is a strict local maximum over the
// (TimeNeighborhood, FreqNeighborhood) region. Survivors are capped at
// cfg.MaxPeaksPerFrame strongest per frame. Silent frames yield no peaks.
// The result is ordered by (TimeIdx, FreqIdx).
func ExtractPeaks(spec [][]float64, cfg Config) []Peak {
	if len(spec) == 0 {
		return nil
	}

	numBins := len(spec[0])
	bands := bandEdges(numBins)
	frameMs := cfg.FrameDurationMs()

	// dB conversion once; the local-max check reads neighboring frames.
	db := make([][]float64, len(spec))
	for t := range spec {
		row := make([]float64, numBins)
		for f, mag := range spec[t] {
			row[f] = 20 * math.Log10(mag+1e-12)
		}
		db[t] = row
	}

	var peaks []Peak
	for t := range db {
		var frame []Peak
		for _, band := range bands {
			lo, hi := band[0], band[1]
			if hi-lo < 1 {
				continue
			}

			maxBin, sum := lo, 0.0
			for f := lo; f < hi; f++ {
				sum += db[t][f]
				if db[t][f] > db[t][maxBin] {
					maxBin = f
				}
			}
			avg := sum / float64(hi-lo)
			mag := db[t][maxBin]

			if mag < avg+cfg.PeakThresholdDB || mag < cfg.MinPeakDB {
				continue
			}
			if !isLocalMax(db, t, maxBin, cfg) {
				continue
			}

			frame = append(frame, Peak{
				TimeIdx: t,
				FreqIdx: maxBin,
				TimeMs:  uint32(math.Round(float64(t) * frameMs)),
				MagDB:   mag,
			})
		}

		if len(frame) > cfg.MaxPeaksPerFrame {
			sort.Slice(frame, func(i, j int) bool { return frame[i].MagDB > frame[j].MagDB })
			frame = frame[:cfg.MaxPeaksPerFrame]
		}
		peaks = append(peaks, frame...)
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].TimeIdx != peaks[j].TimeIdx {
			return peaks[i].TimeIdx < peaks[j].TimeIdx
		}
		return peaks[i].FreqIdx < peaks[j].FreqIdx
	})

	return peaks
}

// isLocalMax reports whether (t, f) strictly dominates every neighbor within
// the configured time/frequency neighborhood.
func isLocalMax(db [][]float64, t, f int, cfg Config) bool {
	numBins := len(db[0])
	for dt := -cfg.TimeNeighborhood; dt <= cfg.TimeNeighborhood; dt++ {
		tt := t + dt
		if tt < 0 || tt >= len(db) {
			continue
		}
		for df := -cfg.FreqNeighborhood; df <= cfg.FreqNeighborhood; df++ {
			ff := f + df
			if ff < 0 || ff >= numBins || (dt == 0 && df == 0) {
				continue
			}
			if db[tt][ff] >= db[t][f] {
				return false
			}
		}
	}
	return true
}
