package jukebox

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/audio"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/model"
	"github.com/frederictriquet/Jukebox/pkg/utils"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
	".opus": true,
	".aiff": true,
	".aif":  true,
}

// IndexOptions controls one indexing run.
type IndexOptions struct {
	// Workers overrides the engine worker count when > 0.
	Workers int

	// Limit caps how many tracks are fingerprinted; 0 means all.
	Limit int

	// Force re-fingerprints already indexed tracks instead of skipping
	// them.
	Force bool

	// OnProgress, when set, is called after each completed or failed
	// track with the running totals.
	OnProgress func(done, total int)
}

// TrackIssue records why one track was skipped or failed.
type TrackIssue struct {
	Path   string
	Reason string
}

// IndexReport is the end-of-batch summary. Every run produces one, even
// when cancelled.
type IndexReport struct {
	// Total is how many tracks the run set out to index.
	Total       int
	Indexed     int
	Failed      []TrackIssue
	Interrupted bool
	Elapsed     time.Duration
}

// ScanLibrary walks root, registers every audio file in the catalog, and
// returns how many files it saw. Files whose content changed since the last
// scan are marked for re-indexing by the store.
func (e *Engine) ScanLibrary(ctx context.Context, root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		if err := e.registerFile(ctx, path); err != nil {
			e.log.Warnf("skipping %s: %v", path, err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	e.log.Infof("library scan: %d audio files under %s", count, root)
	return count, nil
}

func (e *Engine) registerFile(ctx context.Context, path string) error {
	checksum, err := utils.FileChecksum(path)
	if err != nil {
		return err
	}

	// Skip the metadata probe when nothing changed.
	if existing, err := e.storage.TrackByPath(path); err == nil && existing.ContentHash == checksum {
		return nil
	}

	title, artist := audio.ReadTags(path)
	durationMs := 0
	if meta, err := audio.Probe(ctx, path); err == nil {
		durationMs = int(meta.DurationSec * 1000)
		if title == "" && meta.Title != "" {
			title = meta.Title
		}
		if artist == "" && meta.Artist != "" {
			artist = meta.Artist
		}
	}

	track := &model.Track{
		Path:        path,
		Title:       title,
		Artist:      artist,
		DurationMs:  durationMs,
		ContentHash: checksum,
	}
	return e.storage.RegisterTrack(track)
}

// IndexFile registers and fingerprints a single file end to end. Used by
// fetch and by callers that bypass the library walk.
func (e *Engine) IndexFile(ctx context.Context, path string) (*model.Track, error) {
	if err := e.registerFile(ctx, path); err != nil {
		return nil, err
	}
	track, err := e.storage.TrackByPath(path)
	if err != nil {
		return nil, err
	}
	if err := e.indexTrack(ctx, *track); err != nil {
		return nil, err
	}
	return track, nil
}

// indexTrack is the per-track work unit a worker owns end to end: decode,
// fingerprint, transactional store insert.
func (e *Engine) indexTrack(ctx context.Context, track model.Track) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples, err := e.decode(ctx, track.Path)
	if err != nil {
		return err
	}
	pairs := e.fingerprintSamples(samples)
	// The conforming-WAV decode path never consults ctx, so recheck before
	// committing: a cancelled track must not reach the store.
	if err := ctx.Err(); err != nil {
		return err
	}
	e.log.Debugf("indexed %s: %d hashes", track.Path, len(pairs))
	return e.storage.SaveTrackFingerprints(track.ID, pairs)
}

// IndexLibrary fingerprints the registered tracks that still need it on a
// bounded worker pool. The run is resumable (completed tracks are skipped
// unless opts.Force) and cancellable: workers stop taking tracks once ctx
// is done, and a cancelled worker's current track never commits, so the
// store stays valid. Decode failures skip the track and never abort the
// batch.
func (e *Engine) IndexLibrary(ctx context.Context, opts IndexOptions) (*IndexReport, error) {
	start := time.Now()

	var tracks []model.Track
	var err error
	if opts.Force {
		tracks, err = e.storage.Tracks(opts.Limit)
	} else {
		tracks, err = e.storage.TracksToIndex(opts.Limit)
	}
	if err != nil {
		return nil, err
	}

	report := &IndexReport{Total: len(tracks)}
	if len(tracks) == 0 {
		report.Elapsed = time.Since(start)
		return report, nil
	}

	workers := e.cfg.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	if workers > len(tracks) {
		workers = len(tracks)
	}

	type result struct {
		track model.Track
		err   error
	}

	taskCh := make(chan model.Track)
	resultCh := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for track := range taskCh {
				resultCh <- result{track: track, err: e.indexTrack(ctx, track)}
			}
		}()
	}

	go func() {
		defer close(taskCh)
		for _, track := range tracks {
			// A ready worker and a done context make the send select a
			// coin flip; checking first keeps cancellation strict.
			if ctx.Err() != nil {
				return
			}
			select {
			case taskCh <- track:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var done atomic.Int64
	for res := range resultCh {
		completed := int(done.Add(1))
		switch {
		case res.err == nil:
			report.Indexed++
		case errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded):
			report.Interrupted = true
		default:
			var decodeErr *audio.DecodeError
			reason := res.err.Error()
			if errors.As(res.err, &decodeErr) {
				reason = "decode failure: " + decodeErr.Err.Error()
			}
			e.log.Warnf("indexing %s failed: %v", res.track.Path, res.err)
			report.Failed = append(report.Failed, TrackIssue{Path: res.track.Path, Reason: reason})
		}
		if opts.OnProgress != nil {
			opts.OnProgress(completed, len(tracks))
		}
	}

	if ctx.Err() != nil {
		report.Interrupted = true
	}
	report.Elapsed = time.Since(start)
	e.log.Infof("indexing done: %d/%d tracks in %s (%d failed)",
		report.Indexed, len(tracks), report.Elapsed.Round(time.Second), len(report.Failed))
	return report, nil
}
