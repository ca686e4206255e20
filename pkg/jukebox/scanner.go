package jukebox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/cue"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/fingerprint"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/model"
)

// Windows shorter than this at the tail of a mix carry too few hashes to
// vote on and are skipped.
const minWindowSeconds = 5

// defaultStretchRatios is the multi-rate sweep used when tempo search is
// on: ±8% in 2% steps, covering typical beatmatching adjustments. Wider
// shifts remain an open limitation of the delta-histogram scheme.
var defaultStretchRatios = []float64{0.92, 0.94, 0.96, 0.98, 1.0, 1.02, 1.04, 1.06, 1.08}

// AnalyzeOptions controls one mix analysis.
type AnalyzeOptions struct {
	// SegmentSeconds / OverlapSeconds override the engine window when > 0.
	SegmentSeconds int
	OverlapSeconds int

	// MinConfidence overrides the match gate when > 0.
	MinConfidence float64

	// TempoSearch enables the multi-rate histogram sweep.
	TempoSearch bool

	// MixTitle and MixPerformer seed the sheet header.
	MixTitle     string
	MixPerformer string
}

// Gap is a region of the mix no track claimed with confidence. Gaps are
// surfaced for manual resolution, never guessed at.
type Gap struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// Analysis is the result of one full-mix run: the cue sheet, the unresolved
// regions, and window accounting for diagnostics.
type Analysis struct {
	Sheet         *cue.Sheet `json:"sheet"`
	Gaps          []Gap      `json:"gaps,omitempty"`
	Windows       int        `json:"windows"`
	MixDurationMs int64      `json:"mix_duration_ms"`
}

// windowMatch is one analysis window and its best candidate, nil when the
// window resolved to nothing.
type windowMatch struct {
	startMs int64
	endMs   int64
	cand    *fingerprint.Candidate
}

// segment is a merged run of windows attributed to one track.
type segment struct {
	trackID      string
	startMs      int64
	endMs        int64
	confidence   float64
	votes        int
	windows      int
	stretchRatio float64
}

// Analyze slides an overlapping window across the mix, matches each window,
// and stitches the results into a cue sheet. Unmatched regions come back as
// gaps; the sheet is complete either way.
func (e *Engine) Analyze(ctx context.Context, mixPath string, opts AnalyzeOptions) (*Analysis, error) {
	samples, err := e.decode(ctx, mixPath)
	if err != nil {
		return nil, err
	}

	segmentSec := e.cfg.SegmentSeconds
	overlapSec := e.cfg.OverlapSeconds
	if opts.SegmentSeconds > 0 {
		segmentSec = opts.SegmentSeconds
	}
	if opts.OverlapSeconds > 0 && opts.OverlapSeconds < segmentSec {
		overlapSec = opts.OverlapSeconds
	}
	// The window must advance. A configured overlap at or past the segment
	// length (a short --segment against the default overlap) is clamped to
	// half the segment instead of walking the mix backwards.
	if overlapSec >= segmentSec {
		overlapSec = segmentSec / 2
	}

	matchCfg := e.cfg.Match
	if opts.MinConfidence > 0 {
		matchCfg.MinConfidence = opts.MinConfidence
	}
	if opts.TempoSearch && len(matchCfg.StretchRatios) == 0 {
		matchCfg.StretchRatios = defaultStretchRatios
	}

	rate := e.cfg.Fingerprint.SampleRate
	mixDurationMs := int64(len(samples)) * 1000 / int64(rate)

	windows, err := e.matchWindows(ctx, samples, segmentSec, overlapSec, matchCfg)
	if err != nil {
		return nil, err
	}

	overlapMs := int64(overlapSec) * 1000
	segments, gaps := stitchWindows(windows, overlapMs, mixDurationMs)

	sheet := cue.NewSheet(mixPath, opts.MixTitle, opts.MixPerformer)
	for _, seg := range segments {
		track, err := e.storage.TrackByID(seg.trackID)
		if err != nil {
			if errors.Is(err, model.ErrTrackNotFound) {
				e.log.Warnf("dropping segment for stale track %s", seg.trackID)
				gaps = append(gaps, Gap{StartMs: seg.startMs, EndMs: seg.endMs})
				continue
			}
			return nil, err
		}
		sheet.AddDetected(cue.Entry{
			TrackID:      track.ID,
			Title:        track.Title,
			Artist:       track.Artist,
			StartMs:      seg.startMs,
			DurationMs:   seg.endMs - seg.startMs,
			Confidence:   seg.confidence,
			Windows:      seg.windows,
			StretchRatio: seg.stretchRatio,
		})
	}
	sortGaps(gaps)

	return &Analysis{
		Sheet:         sheet,
		Gaps:          gaps,
		Windows:       len(windows),
		MixDurationMs: mixDurationMs,
	}, nil
}

// matchWindows fingerprints every window in parallel on the engine pool,
// then matches them in order. Matching stays sequential so store reads do
// not interleave with the merge pass that follows.
func (e *Engine) matchWindows(ctx context.Context, samples []float64, segmentSec, overlapSec int, matchCfg fingerprint.MatchConfig) ([]windowMatch, error) {
	rate := e.cfg.Fingerprint.SampleRate
	windowSamples := segmentSec * rate
	hopSamples := (segmentSec - overlapSec) * rate
	if hopSamples <= 0 {
		return nil, fmt.Errorf("window does not advance: segment %ds, overlap %ds", segmentSec, overlapSec)
	}
	minSamples := minWindowSeconds * rate

	type bounds struct{ start, end int }
	var spans []bounds
	for start := 0; start < len(samples); start += hopSamples {
		end := start + windowSamples
		if end > len(samples) {
			end = len(samples)
		}
		if end-start < minSamples {
			break
		}
		spans = append(spans, bounds{start, end})
		if end == len(samples) {
			break
		}
	}

	pairsPerWindow := make([][]fingerprint.Pair, len(spans))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.cfg.Workers)
	for i, span := range spans {
		i, span := i, span
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			pairsPerWindow[i] = e.fingerprintSamples(samples[span.start:span.end])
		}()
	}
	wg.Wait()

	windows := make([]windowMatch, len(spans))
	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w := windowMatch{
			startMs: int64(span.start) * 1000 / int64(rate),
			endMs:   int64(span.end) * 1000 / int64(rate),
		}
		candidates, err := e.matchPairs(pairsPerWindow[i], matchCfg)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			cand := candidates[0]
			w.cand = &cand
		}
		windows[i] = w
	}
	return windows, nil
}

// stitchWindows merges consecutive windows resolving to the same track into
// segments and collects unmatched stretches as gaps. A segment's start is
// refined by the matcher's offset estimate, clamped into the overlap
// neighborhood of its first window so a wild estimate cannot move it past
// the window granularity the scan actually observed.
func stitchWindows(windows []windowMatch, overlapMs, mixDurationMs int64) ([]segment, []Gap) {
	var segments []segment
	var gaps []Gap
	var cur *segment
	var gapStart int64 = -1

	closeGap := func(endMs int64) {
		if gapStart >= 0 && endMs > gapStart {
			gaps = append(gaps, Gap{StartMs: gapStart, EndMs: endMs})
		}
		gapStart = -1
	}

	for _, w := range windows {
		if w.cand == nil {
			if cur != nil {
				segments = append(segments, *cur)
				cur = nil
			}
			if gapStart < 0 {
				gapStart = w.startMs
			}
			continue
		}

		if cur != nil && cur.trackID == w.cand.TrackID {
			cur.endMs = w.endMs
			cur.windows++
			if w.cand.Confidence > cur.confidence {
				cur.confidence = w.cand.Confidence
				cur.votes = w.cand.Votes
				cur.stretchRatio = w.cand.StretchRatio
			}
			continue
		}

		if cur != nil {
			segments = append(segments, *cur)
		}

		start := refineStart(w, overlapMs)
		if cur != nil && start < cur.endMs-overlapMs {
			start = cur.endMs - overlapMs
		}
		// A refined start pulled back into the preceding unmatched
		// stretch shortens that gap; gap and entry never overlap.
		gapEnd := w.startMs
		if start < gapEnd {
			gapEnd = start
		}
		closeGap(gapEnd)
		cur = &segment{
			trackID:      w.cand.TrackID,
			startMs:      start,
			endMs:        w.endMs,
			confidence:   w.cand.Confidence,
			votes:        w.cand.Votes,
			windows:      1,
			stretchRatio: w.cand.StretchRatio,
		}
	}
	if cur != nil {
		segments = append(segments, *cur)
	}
	closeGap(mixDurationMs)

	// Neighboring segments never overlap; the refined start of each
	// segment is also floored at its predecessor's end minus the window
	// overlap, and at zero.
	for i := range segments {
		if segments[i].startMs < 0 {
			segments[i].startMs = 0
		}
		if i > 0 && segments[i].startMs < segments[i-1].startMs {
			segments[i].startMs = segments[i-1].startMs
		}
	}
	return segments, gaps
}

// refineStart places the segment boundary using the offset histogram's
// estimate of where the track begins relative to the window. The estimate
// is only trusted inside [start-overlap, end]; the transition necessarily
// happened within the window overlap the scan observed.
func refineStart(w windowMatch, overlapMs int64) int64 {
	est := w.startMs + w.cand.OffsetMs
	if est < w.startMs-overlapMs {
		return w.startMs - overlapMs
	}
	if est > w.endMs {
		return w.startMs
	}
	if est < 0 {
		return 0
	}
	return est
}

func sortGaps(gaps []Gap) {
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].StartMs < gaps[j].StartMs })
}
