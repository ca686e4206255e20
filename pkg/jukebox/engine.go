package jukebox

import (
	"context"
	"errors"
	"fmt"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/audio"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/fingerprint"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/model"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/storage"
	"github.com/frederictriquet/Jukebox/pkg/logger"
)

// ErrNoMatch is returned when no candidate clears the confidence gates. It
// is an expected outcome, not a failure: callers surface it as an
// unresolved segment for manual review.
var ErrNoMatch = errors.New("no confident match")

// Engine ties the fingerprint pipeline to an injected Storage. One engine
// serves indexing, single-file identification, and full-mix analysis.
type Engine struct {
	storage Storage
	log     Logger
	cfg     *Config

	ownsStorage bool
}

// New builds an engine from options. Without WithStorage the SQLite store
// at cfg.DBPath is opened and owned (closed by Close).
func New(opts ...Option) (*Engine, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	e := &Engine{log: cfg.Logger, cfg: cfg}
	if cfg.Storage != nil {
		e.storage = cfg.Storage
	} else {
		client, err := storage.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening fingerprint store: %w", err)
		}
		e.storage = client
		e.ownsStorage = true
	}
	return e, nil
}

// Close releases the store if the engine opened it itself.
func (e *Engine) Close() error {
	if e.ownsStorage {
		return e.storage.Close()
	}
	return nil
}

// Stats reports store size and coverage.
func (e *Engine) Stats() (*model.StoreStats, error) {
	return e.storage.Stats()
}

// ClearFingerprints wipes all postings, keeping the track catalog.
func (e *Engine) ClearFingerprints() error {
	return e.storage.ClearFingerprints()
}

// decode reads path into mono samples at the engine rate.
func (e *Engine) decode(ctx context.Context, path string) ([]float64, error) {
	return audio.Decode(ctx, path, e.cfg.TempDir, e.cfg.Fingerprint.SampleRate)
}

// fingerprintSamples runs the extraction pipeline: STFT, peak picking,
// landmark pairing.
func (e *Engine) fingerprintSamples(samples []float64) []fingerprint.Pair {
	spec := fingerprint.Spectrogram(samples, e.cfg.Fingerprint)
	peaks := fingerprint.ExtractPeaks(spec, e.cfg.Fingerprint)
	return fingerprint.PairPeaks(peaks, e.cfg.Fingerprint)
}

// identifyWindowSeconds caps how much of a query file Identify
// fingerprints. Longer files contribute their middle portion, which skips
// intros and outros and bounds the lookup cost.
const identifyWindowSeconds = 60

// middleExcerpt returns the centered seconds-long slice of samples, or all
// of them when the file is shorter.
func middleExcerpt(samples []float64, rate, seconds int) []float64 {
	limit := seconds * rate
	if len(samples) <= limit {
		return samples
	}
	start := (len(samples) - limit) / 2
	return samples[start : start+limit]
}

// Identify resolves a single file against the store and returns the best
// match, or ErrNoMatch. Long files are identified by their middle minute.
func (e *Engine) Identify(ctx context.Context, path string) (*model.Match, error) {
	samples, err := e.decode(ctx, path)
	if err != nil {
		return nil, err
	}

	samples = middleExcerpt(samples, e.cfg.Fingerprint.SampleRate, identifyWindowSeconds)
	pairs := e.fingerprintSamples(samples)
	e.log.Debugf("query %s: %d hashes", path, len(pairs))
	if len(pairs) == 0 {
		return nil, ErrNoMatch
	}

	candidates, err := e.matchPairs(pairs, e.cfg.Match)
	if err != nil {
		return nil, err
	}

	match := e.resolveBest(candidates)
	if match == nil {
		return nil, ErrNoMatch
	}
	return match, nil
}

// matchPairs looks up the pair hashes and votes.
func (e *Engine) matchPairs(pairs []fingerprint.Pair, matchCfg fingerprint.MatchConfig) ([]fingerprint.Candidate, error) {
	hashes := make([]uint32, 0, len(pairs))
	seen := make(map[uint32]struct{}, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p.Hash]; ok {
			continue
		}
		seen[p.Hash] = struct{}{}
		hashes = append(hashes, p.Hash)
	}

	couples, err := e.storage.CouplesByHashes(hashes)
	if err != nil {
		return nil, fmt.Errorf("looking up fingerprints: %w", err)
	}
	return fingerprint.Vote(pairs, couples, matchCfg), nil
}

// resolveBest turns the top surviving candidate into a Match, skipping
// candidates whose track id no longer resolves (stale postings are dropped
// with a warning, per the store-inconsistency policy).
func (e *Engine) resolveBest(candidates []fingerprint.Candidate) *model.Match {
	for _, cand := range candidates {
		track, err := e.storage.TrackByID(cand.TrackID)
		if err != nil {
			if errors.Is(err, model.ErrTrackNotFound) {
				e.log.Warnf("dropping stale fingerprint reference to track %s", cand.TrackID)
				continue
			}
			e.log.Errorf("resolving track %s: %v", cand.TrackID, err)
			continue
		}
		return &model.Match{
			TrackID:      track.ID,
			Title:        track.Title,
			Artist:       track.Artist,
			Confidence:   cand.Confidence,
			OffsetMs:     cand.OffsetMs,
			Votes:        cand.Votes,
			StretchRatio: cand.StretchRatio,
		}
	}
	return nil
}
