package jukebox

import (
	"github.com/frederictriquet/Jukebox/pkg/jukebox/fingerprint"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/model"
)

// Storage is the fingerprint store contract the engine runs against. The
// default implementation is SQLite; tests inject the in-memory one. Inserts
// are transactional per track, so lookups stay safe while other tracks are
// being written.
type Storage interface {
	// RegisterTrack upserts a track by path, assigning an id to new
	// tracks. A changed content hash invalidates the track's index
	// status.
	RegisterTrack(track *model.Track) error

	TrackByID(id string) (*model.Track, error)
	TrackByPath(path string) (*model.Track, error)

	// Tracks lists all registered tracks; TracksToIndex only those
	// without a valid index pass. limit <= 0 means no limit.
	Tracks(limit int) ([]model.Track, error)
	TracksToIndex(limit int) ([]model.Track, error)
	IsIndexed(trackID string) (bool, error)

	// SaveTrackFingerprints transactionally replaces the track's
	// postings; re-indexing is idempotent.
	SaveTrackFingerprints(trackID string, pairs []fingerprint.Pair) error
	DeleteTrackFingerprints(trackID string) error

	// CouplesByHashes bulk-resolves hash buckets for matching.
	CouplesByHashes(hashes []uint32) (map[uint32][]model.Couple, error)

	ClearFingerprints() error
	Stats() (*model.StoreStats, error)
	Close() error
}

// Logger is the narrow logging surface the engine depends on.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
