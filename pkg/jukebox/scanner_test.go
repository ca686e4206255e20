package jukebox

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/cue"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/fingerprint"
)

func cand(trackID string, offsetMs int64, confidence float64) *fingerprint.Candidate {
	return &fingerprint.Candidate{
		TrackID:      trackID,
		OffsetMs:     offsetMs,
		Confidence:   confidence,
		Votes:        20,
		StretchRatio: 1.0,
	}
}

// TestStitchWindowsMerge checks consecutive same-track windows collapse
// into one segment keeping the best confidence.
func TestStitchWindowsMerge(t *testing.T) {
	windows := []windowMatch{
		{startMs: 0, endMs: 10000, cand: cand("A", 0, 0.7)},
		{startMs: 5000, endMs: 15000, cand: cand("A", -5000, 0.9)},
		{startMs: 10000, endMs: 20000, cand: cand("A", -10000, 0.8)},
	}

	segments, gaps := stitchWindows(windows, 5000, 20000)
	if len(segments) != 1 {
		t.Fatalf("Got %d segments, want 1: %+v", len(segments), segments)
	}
	if len(gaps) != 0 {
		t.Errorf("Unexpected gaps: %+v", gaps)
	}

	seg := segments[0]
	if seg.trackID != "A" || seg.startMs != 0 || seg.endMs != 20000 {
		t.Errorf("Segment = %+v", seg)
	}
	if seg.confidence != 0.9 {
		t.Errorf("Merged confidence %.2f, want the window maximum 0.9", seg.confidence)
	}
	if seg.windows != 3 {
		t.Errorf("Window support %d, want 3", seg.windows)
	}
}

// TestStitchWindowsBoundaryRefinement verifies a transition lands at the
// matcher's offset estimate inside the overlap, not at window granularity.
func TestStitchWindowsBoundaryRefinement(t *testing.T) {
	// B starts 3 s into the 10-20 s window: offset estimate +3000.
	windows := []windowMatch{
		{startMs: 0, endMs: 10000, cand: cand("A", 0, 0.9)},
		{startMs: 10000, endMs: 20000, cand: cand("B", 3000, 0.8)},
	}

	segments, _ := stitchWindows(windows, 5000, 20000)
	if len(segments) != 2 {
		t.Fatalf("Got %d segments, want 2", len(segments))
	}
	if segments[1].startMs != 13000 {
		t.Errorf("Refined start %d, want 13000", segments[1].startMs)
	}

	// A wild estimate outside [start-overlap, end] falls back to the
	// window start.
	windows[1].cand = cand("B", 25000, 0.8)
	segments, _ = stitchWindows(windows, 5000, 20000)
	if segments[1].startMs != 10000 {
		t.Errorf("Wild estimate start %d, want window start 10000", segments[1].startMs)
	}

	// A negative estimate is clamped into the overlap region.
	windows[1].cand = cand("B", -20000, 0.8)
	segments, _ = stitchWindows(windows, 5000, 20000)
	if segments[1].startMs != 5000 {
		t.Errorf("Clamped start %d, want 5000", segments[1].startMs)
	}
}

// TestStitchWindowsGaps checks unmatched stretches surface as gaps, with
// starts monotonic across the segment sequence.
func TestStitchWindowsGaps(t *testing.T) {
	windows := []windowMatch{
		{startMs: 0, endMs: 10000, cand: cand("A", 0, 0.9)},
		{startMs: 10000, endMs: 20000},
		{startMs: 20000, endMs: 30000},
		{startMs: 30000, endMs: 40000, cand: cand("B", 0, 0.8)},
	}

	segments, gaps := stitchWindows(windows, 5000, 40000)
	if len(segments) != 2 {
		t.Fatalf("Got %d segments, want 2", len(segments))
	}
	if len(gaps) != 1 {
		t.Fatalf("Got %d gaps, want 1: %+v", len(gaps), gaps)
	}
	if gaps[0].StartMs != 10000 || gaps[0].EndMs != 30000 {
		t.Errorf("Gap = %+v, want [10000, 30000]", gaps[0])
	}

	// Same track on both sides of a gap must still give two segments,
	// not one bridging entry.
	windows[3].cand = cand("A", 0, 0.8)
	segments, _ = stitchWindows(windows, 5000, 40000)
	if len(segments) != 2 {
		t.Errorf("Gap bridged: %d segments, want 2", len(segments))
	}
}

func TestStitchWindowsTrailingGap(t *testing.T) {
	windows := []windowMatch{
		{startMs: 0, endMs: 10000, cand: cand("A", 0, 0.9)},
		{startMs: 10000, endMs: 20000},
	}
	_, gaps := stitchWindows(windows, 5000, 25000)
	if len(gaps) != 1 || gaps[0].StartMs != 10000 || gaps[0].EndMs != 25000 {
		t.Errorf("Trailing gap = %+v, want [10000, 25000]", gaps)
	}
}

// TestAnalyzeTwoTrackMix builds a synthetic mix of A then B and checks the
// cue sheet has exactly two entries at the right boundaries.
func TestAnalyzeTwoTrackMix(t *testing.T) {
	e := newTestEngine(t, WithSegment(10, 5))
	dir := t.TempDir()
	rate := e.cfg.Fingerprint.SampleRate

	trackA := synthTrack(21, 30, rate)
	trackB := synthTrack(22, 30, rate)
	writeTrackWAV(t, filepath.Join(dir, "Artist - A.wav"), trackA, rate)
	writeTrackWAV(t, filepath.Join(dir, "Artist - B.wav"), trackB, rate)
	indexDir(t, e, dir)

	mixPath := filepath.Join(t.TempDir(), "mix.wav")
	writeTrackWAV(t, mixPath, append(append([]float64{}, trackA...), trackB...), rate)

	analysis, err := e.Analyze(context.Background(), mixPath, AnalyzeOptions{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	entries := analysis.Sheet.Entries
	if len(entries) != 2 {
		t.Fatalf("Got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].Title != "A" {
		t.Errorf("First entry %q, want A", entries[0].Title)
	}
	if entries[1].Title != "B" {
		t.Errorf("Second entry %q, want B", entries[1].Title)
	}
	if entries[0].StartMs != 0 {
		t.Errorf("A starts at %d ms, want 0", entries[0].StartMs)
	}
	if diff := entries[1].StartMs - 30000; diff < -5000 || diff > 5000 {
		t.Errorf("B starts at %d ms, want 30000 +/- 5000", entries[1].StartMs)
	}
	for _, entry := range entries {
		if entry.Status != cue.StatusPending {
			t.Errorf("Entry %q status %s, want PENDING", entry.Title, entry.Status)
		}
	}
	if len(analysis.Gaps) != 0 {
		t.Errorf("Unexpected gaps in contiguous mix: %+v", analysis.Gaps)
	}
	t.Logf("Two-track mix: A@%dms B@%dms over %d windows", entries[0].StartMs, entries[1].StartMs, analysis.Windows)
}

// TestAnalyzeGapHandling inserts silence between two known tracks; the
// result must be A, an unresolved gap, B, with no bridging match.
func TestAnalyzeGapHandling(t *testing.T) {
	e := newTestEngine(t, WithSegment(10, 5))
	dir := t.TempDir()
	rate := e.cfg.Fingerprint.SampleRate

	trackA := synthTrack(31, 20, rate)
	trackB := synthTrack(32, 20, rate)
	writeTrackWAV(t, filepath.Join(dir, "Artist - A.wav"), trackA, rate)
	writeTrackWAV(t, filepath.Join(dir, "Artist - B.wav"), trackB, rate)
	indexDir(t, e, dir)

	mix := append(append([]float64{}, trackA...), make([]float64, 20*rate)...)
	mix = append(mix, trackB...)
	mixPath := filepath.Join(t.TempDir(), "gapmix.wav")
	writeTrackWAV(t, mixPath, mix, rate)

	analysis, err := e.Analyze(context.Background(), mixPath, AnalyzeOptions{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	entries := analysis.Sheet.Entries
	if len(entries) != 2 {
		t.Fatalf("Got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].Title != "A" || entries[1].Title != "B" {
		t.Errorf("Entries = %q, %q; want A, B", entries[0].Title, entries[1].Title)
	}
	if entries[1].StartMs < 30000 {
		t.Errorf("B starts at %d ms inside the silent region", entries[1].StartMs)
	}

	if len(analysis.Gaps) == 0 {
		t.Fatal("Silent region produced no gap")
	}
	found := false
	for _, g := range analysis.Gaps {
		if g.StartMs >= 15000 && g.EndMs <= 45000 && g.EndMs-g.StartMs >= 5000 {
			found = true
		}
	}
	if !found {
		t.Errorf("No gap covering the silent region: %+v", analysis.Gaps)
	}
}

// TestAnalyzeUnknownMix runs analysis over audio absent from the store;
// everything must come back as gap, never a guess.
func TestAnalyzeUnknownMix(t *testing.T) {
	e := newTestEngine(t, WithSegment(10, 5))
	dir := t.TempDir()
	rate := e.cfg.Fingerprint.SampleRate
	writeTrackWAV(t, filepath.Join(dir, "known.wav"), synthTrack(41, 15, rate), rate)
	indexDir(t, e, dir)

	mixPath := filepath.Join(t.TempDir(), "unknown.wav")
	writeTrackWAV(t, mixPath, synthTrack(555, 25, rate), rate)

	analysis, err := e.Analyze(context.Background(), mixPath, AnalyzeOptions{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(analysis.Sheet.Entries) != 0 {
		t.Errorf("Unknown mix produced entries: %+v", analysis.Sheet.Entries)
	}
	if len(analysis.Gaps) == 0 {
		t.Error("Unknown mix produced no gaps")
	}
}

// TestStitchWindowsGapEntryBoundary: refining an entry's start back into a
// preceding unmatched stretch shortens that gap so the two never overlap.
func TestStitchWindowsGapEntryBoundary(t *testing.T) {
	// B's estimate pulls its start 3 s before its first window, into the
	// unmatched region.
	windows := []windowMatch{
		{startMs: 0, endMs: 10000, cand: nil},
		{startMs: 10000, endMs: 20000, cand: cand("B", -3000, 0.8)},
	}

	segments, gaps := stitchWindows(windows, 5000, 20000)
	if len(segments) != 1 {
		t.Fatalf("Got %d segments, want 1: %+v", len(segments), segments)
	}
	if segments[0].startMs != 7000 {
		t.Errorf("Refined start %d, want 7000", segments[0].startMs)
	}
	if len(gaps) != 1 {
		t.Fatalf("Got %d gaps, want 1: %+v", len(gaps), gaps)
	}
	if gaps[0].StartMs != 0 || gaps[0].EndMs != 7000 {
		t.Errorf("Gap = %+v, want [0, 7000]", gaps[0])
	}
	if gaps[0].EndMs > segments[0].startMs {
		t.Errorf("Gap [%d, %d] overlaps entry starting at %d",
			gaps[0].StartMs, gaps[0].EndMs, segments[0].startMs)
	}
}

// TestMatchWindowsRequiresAdvance rejects a window layout whose hop is not
// positive instead of looping forever.
func TestMatchWindowsRequiresAdvance(t *testing.T) {
	e := newTestEngine(t)
	rate := e.cfg.Fingerprint.SampleRate
	samples := make([]float64, 20*rate)

	if _, err := e.matchWindows(context.Background(), samples, 10, 10, e.cfg.Match); err == nil {
		t.Error("matchWindows accepted overlap == segment")
	}
	if _, err := e.matchWindows(context.Background(), samples, 0, 0, e.cfg.Match); err == nil {
		t.Error("matchWindows accepted a zero segment")
	}
}

// TestAnalyzeSegmentShorterThanOverlap: a --segment below the configured
// overlap clamps the overlap and completes instead of hanging.
func TestAnalyzeSegmentShorterThanOverlap(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	rate := e.cfg.Fingerprint.SampleRate

	track := synthTrack(21, 20, rate)
	writeTrackWAV(t, filepath.Join(dir, "a.wav"), track, rate)
	indexDir(t, e, dir)

	mixPath := filepath.Join(t.TempDir(), "mix.wav")
	writeTrackWAV(t, mixPath, track, rate)

	// Engine overlap is 15 s; a 5 s segment must still advance.
	analysis, err := e.Analyze(context.Background(), mixPath, AnalyzeOptions{SegmentSeconds: 5})
	if err != nil {
		t.Fatal(err)
	}
	if analysis.Windows == 0 {
		t.Fatal("Analysis produced no windows")
	}
	entries := analysis.Sheet.Entries
	if len(entries) != 1 {
		t.Fatalf("Got %d entries, want 1: %+v", len(entries), entries)
	}
}
