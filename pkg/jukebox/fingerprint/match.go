package fingerprint

import (
	"math"
	"sort"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/model"
)

// MatchConfig holds the voting and scoring tunables.
//
// Confidence is votes normalized by the number of query hashes generated for
// the segment, scaled by ConfidenceScale and clamped to 1; the normalization
// keeps segment length from biasing the score but the scale is a policy
// choice, not a derived constant, and is exposed for exactly that reason.
type MatchConfig struct {
	// BinWidthMs is the offset histogram bin width.
	BinWidthMs int64

	// MinVotes is the absolute evidence floor for the winning cluster.
	MinVotes int

	// MinLead is how far the winning cluster must lead the best
	// non-neighboring cluster. Chance collisions spread across bins; true
	// matches concentrate.
	MinLead int

	// ConfidenceScale multiplies votes/queryHashes before clamping to 1.
	ConfidenceScale float64

	// MinConfidence drops candidates scoring below it.
	MinConfidence float64

	// MaxCandidates caps the returned list.
	MaxCandidates int

	// StretchRatios enables multi-rate search: the histogram is built per
	// ratio over delta = queryMs - anchorMs*ratio and the best ratio wins
	// per track. Empty means 1.0 only; time-stretched audio otherwise
	// breaks the 1:1 delta assumption and will not match.
	StretchRatios []float64
}

// DefaultMatchConfig returns the default voting policy.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		BinWidthMs:      200,
		MinVotes:        5,
		MinLead:         2,
		ConfidenceScale: 5.0,
		MinConfidence:   0.1,
		MaxCandidates:   50,
	}
}

// Candidate is one track surviving the histogram vote.
type Candidate struct {
	TrackID string

	// Votes is the size of the winning offset cluster.
	Votes int

	// OffsetMs estimates where the track's start sits relative to the
	// query start (negative: the track began before the query window).
	OffsetMs int64

	Confidence   float64
	StretchRatio float64
}

type binAgg struct {
	count int
	sum   int64
}

// Vote resolves query pairs against hash bucket contents.
//
// For every (pair, couple) hit the offset delta = query ms - anchor ms is
// accumulated into a per-track histogram. A track qualifies when its best
// three-bin cluster reaches cfg.MinVotes and leads every cluster centered
// more than two bins away by cfg.MinLead. The cluster's mean delta becomes
// the candidate offset. Candidates are ordered by confidence, then votes,
// then track id.
func Vote(pairs []Pair, couples map[uint32][]model.Couple, cfg MatchConfig) []Candidate {
	if len(pairs) == 0 || len(couples) == 0 {
		return nil
	}

	ratios := cfg.StretchRatios
	if len(ratios) == 0 {
		ratios = []float64{1.0}
	}

	best := make(map[string]Candidate)
	for _, ratio := range ratios {
		hists := make(map[string]map[int64]*binAgg)
		for _, p := range pairs {
			for _, c := range couples[p.Hash] {
				delta := int64(p.AnchorTimeMs) - int64(math.Round(float64(c.AnchorTimeMs)*ratio))
				bin := floorDiv(delta, cfg.BinWidthMs)

				h := hists[c.TrackID]
				if h == nil {
					h = make(map[int64]*binAgg)
					hists[c.TrackID] = h
				}
				agg := h[bin]
				if agg == nil {
					agg = &binAgg{}
					h[bin] = agg
				}
				agg.count++
				agg.sum += delta
			}
		}

		for trackID, h := range hists {
			cand, ok := scoreHistogram(h, len(pairs), cfg)
			if !ok {
				continue
			}
			cand.TrackID = trackID
			cand.StretchRatio = ratio
			if prev, seen := best[trackID]; !seen || cand.Votes > prev.Votes {
				best[trackID] = cand
			}
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].TrackID < out[j].TrackID
	})
	if cfg.MaxCandidates > 0 && len(out) > cfg.MaxCandidates {
		out = out[:cfg.MaxCandidates]
	}
	return out
}

// scoreHistogram finds the best three-bin cluster and applies the evidence,
// lead, and confidence gates.
func scoreHistogram(h map[int64]*binAgg, queryPairs int, cfg MatchConfig) (Candidate, bool) {
	cluster := func(center int64) (int, int64) {
		count, sum := 0, int64(0)
		for b := center - 1; b <= center+1; b++ {
			if agg, ok := h[b]; ok {
				count += agg.count
				sum += agg.sum
			}
		}
		return count, sum
	}

	var bestBin int64
	bestCount, bestSum := -1, int64(0)
	for b := range h {
		count, sum := cluster(b)
		if count > bestCount || (count == bestCount && b < bestBin) {
			bestBin, bestCount, bestSum = b, count, sum
		}
	}
	if bestCount < cfg.MinVotes {
		return Candidate{}, false
	}

	second := 0
	for b := range h {
		if b >= bestBin-2 && b <= bestBin+2 {
			continue
		}
		if count, _ := cluster(b); count > second {
			second = count
		}
	}
	if bestCount-second < cfg.MinLead {
		return Candidate{}, false
	}

	confidence := math.Min(1, float64(bestCount)/float64(queryPairs)*cfg.ConfidenceScale)
	if confidence < cfg.MinConfidence {
		return Candidate{}, false
	}

	return Candidate{
		Votes:      bestCount,
		OffsetMs:   bestSum / int64(bestCount),
		Confidence: confidence,
	}, true
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
