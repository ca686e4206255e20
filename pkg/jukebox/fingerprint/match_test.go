package fingerprint

import (
	"math"
	"testing"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/model"
)

// votePairs builds n query pairs with distinct hashes anchored hopMs apart.
func votePairs(n int, hopMs uint32) []Pair {
	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{Hash: uint32(i + 1), AnchorTimeMs: uint32(i) * hopMs}
	}
	return pairs
}

// alignedCouples places one couple per pair so every delta equals offsetMs.
// A negative offset means the track anchor sits after the query anchor.
func alignedCouples(pairs []Pair, trackID string, offsetMs int64) map[uint32][]model.Couple {
	couples := make(map[uint32][]model.Couple, len(pairs))
	for _, p := range pairs {
		couples[p.Hash] = append(couples[p.Hash], model.Couple{
			TrackID:      trackID,
			AnchorTimeMs: uint32(int64(p.AnchorTimeMs) - offsetMs),
		})
	}
	return couples
}

// TestVoteConcentratedOffsets accepts a track whose hits cluster on one
// offset and recovers that offset.
func TestVoteConcentratedOffsets(t *testing.T) {
	cfg := DefaultMatchConfig()
	pairs := votePairs(10, 500)
	couples := alignedCouples(pairs, "track-a", -3000)

	got := Vote(pairs, couples, cfg)
	if len(got) != 1 {
		t.Fatalf("Vote returned %d candidates, want 1", len(got))
	}
	c := got[0]
	if c.TrackID != "track-a" {
		t.Errorf("TrackID = %q, want track-a", c.TrackID)
	}
	if c.Votes != 10 {
		t.Errorf("Votes = %d, want 10", c.Votes)
	}
	if c.OffsetMs != -3000 {
		t.Errorf("OffsetMs = %d, want -3000", c.OffsetMs)
	}
	if c.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", c.Confidence)
	}
}

// TestVoteMinVotesFloor rejects a cluster below the evidence floor.
func TestVoteMinVotesFloor(t *testing.T) {
	cfg := DefaultMatchConfig()
	pairs := votePairs(4, 500)
	couples := alignedCouples(pairs, "track-a", 0)

	if got := Vote(pairs, couples, cfg); len(got) != 0 {
		t.Errorf("Vote returned %d candidates for %d aligned hits, want 0 (MinVotes %d)",
			len(got), len(pairs), cfg.MinVotes)
	}
}

// TestVoteMarginRejection rejects a track whose best cluster barely leads a
// competing far-away cluster.
func TestVoteMarginRejection(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.MinConfidence = 0

	pairs := votePairs(11, 500)
	couples := make(map[uint32][]model.Couple)
	// Six hits at offset 0, five at offset -10000: lead of 1 < MinLead.
	for i, p := range pairs {
		offset := int64(0)
		if i >= 6 {
			offset = -10000
		}
		couples[p.Hash] = []model.Couple{{
			TrackID:      "track-a",
			AnchorTimeMs: uint32(int64(p.AnchorTimeMs) - offset),
		}}
	}

	if got := Vote(pairs, couples, cfg); len(got) != 0 {
		t.Fatalf("Vote accepted a 6-vs-5 split, want margin rejection")
	}

	// Dropping the competitor to three hits restores the lead.
	for i, p := range pairs {
		if i >= 9 {
			couples[p.Hash] = nil
		}
	}
	got := Vote(pairs, couples, cfg)
	if len(got) != 1 || got[0].Votes != 6 {
		t.Errorf("Vote after thinning competitor = %+v, want one candidate with 6 votes", got)
	}
}

// TestVoteMinConfidenceGate rejects a surviving cluster that scores below
// the confidence threshold.
func TestVoteMinConfidenceGate(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.MinConfidence = 0.5

	// 6 hits out of 100 query hashes: confidence 0.3 under the 0.5 gate.
	pairs := votePairs(100, 100)
	couples := alignedCouples(pairs[:6], "track-a", -1000)

	if got := Vote(pairs, couples, cfg); len(got) != 0 {
		t.Errorf("Vote returned %d candidates below the confidence gate, want 0", len(got))
	}

	cfg.MinConfidence = 0.1
	got := Vote(pairs, couples, cfg)
	if len(got) != 1 {
		t.Fatalf("Vote returned %d candidates above the gate, want 1", len(got))
	}
	if math.Abs(got[0].Confidence-0.3) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.3", got[0].Confidence)
	}
}

// TestVoteStretchRatioSearch matches time-stretched audio only when the
// multi-rate sweep is enabled.
func TestVoteStretchRatioSearch(t *testing.T) {
	cfg := DefaultMatchConfig()

	// Query anchors are the track anchors sped up by 5%. Deltas then drift
	// by 400ms per hit, so no single-rate cluster forms.
	const ratio = 1.05
	n := 10
	pairs := make([]Pair, n)
	couples := make(map[uint32][]model.Couple)
	for i := 0; i < n; i++ {
		anchor := uint32(i * 8000)
		pairs[i] = Pair{
			Hash:         uint32(i + 1),
			AnchorTimeMs: uint32(math.Round(float64(anchor) * ratio)),
		}
		couples[pairs[i].Hash] = []model.Couple{{TrackID: "stretched", AnchorTimeMs: anchor}}
	}

	if got := Vote(pairs, couples, cfg); len(got) != 0 {
		t.Fatalf("single-rate Vote matched stretched audio: %+v", got)
	}

	cfg.StretchRatios = []float64{0.95, 1.0, 1.05}
	got := Vote(pairs, couples, cfg)
	if len(got) != 1 {
		t.Fatalf("multi-rate Vote returned %d candidates, want 1", len(got))
	}
	if got[0].StretchRatio != 1.05 {
		t.Errorf("StretchRatio = %v, want 1.05", got[0].StretchRatio)
	}
	if got[0].Votes != n {
		t.Errorf("Votes = %d, want %d", got[0].Votes, n)
	}
}

// TestVoteMaxCandidates caps and orders the returned list.
func TestVoteMaxCandidates(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.MaxCandidates = 2

	pairs := votePairs(10, 500)
	couples := make(map[uint32][]model.Couple)
	// Three tracks with 10, 8, and 6 aligned hits each.
	for i, p := range pairs {
		couples[p.Hash] = append(couples[p.Hash], model.Couple{
			TrackID: "full", AnchorTimeMs: p.AnchorTimeMs,
		})
		if i < 8 {
			couples[p.Hash] = append(couples[p.Hash], model.Couple{
				TrackID: "most", AnchorTimeMs: p.AnchorTimeMs,
			})
		}
		if i < 6 {
			couples[p.Hash] = append(couples[p.Hash], model.Couple{
				TrackID: "some", AnchorTimeMs: p.AnchorTimeMs,
			})
		}
	}

	got := Vote(pairs, couples, cfg)
	if len(got) != 2 {
		t.Fatalf("Vote returned %d candidates, want 2", len(got))
	}
	if got[0].TrackID != "full" || got[1].TrackID != "most" {
		t.Errorf("candidate order = [%s %s], want [full most]", got[0].TrackID, got[1].TrackID)
	}
	if got[0].Confidence < got[1].Confidence {
		t.Errorf("candidates not confidence-ordered: %v < %v", got[0].Confidence, got[1].Confidence)
	}
}
