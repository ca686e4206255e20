package model

import (
	"errors"
	"time"
)

// ErrTrackNotFound is returned by store lookups for unknown track ids or
// paths. Matching treats a hit pointing at a missing track as stale data,
// not a fatal error.
var ErrTrackNotFound = errors.New("track not found")

// Track is a reference audio file registered in the library catalog.
type Track struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	DurationMs  int       `json:"duration_ms"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Couple is the stored value for a hash bucket entry. AnchorTimeMs is the
// time of the anchor peak inside the source track.
type Couple struct {
	TrackID      string
	AnchorTimeMs uint32
}

// Match is a resolved identification: a track, where it sits relative to the
// query window, and how strongly the offset histogram supports it.
type Match struct {
	TrackID      string  `json:"track_id"`
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	Confidence   float64 `json:"confidence"`
	OffsetMs     int64   `json:"offset_ms"`
	Votes        int     `json:"votes"`
	StretchRatio float64 `json:"stretch_ratio"`
}

// StoreStats summarizes fingerprint store size and coverage.
type StoreStats struct {
	TotalTracks       int64   `json:"total_tracks"`
	IndexedTracks     int64   `json:"indexed_tracks"`
	UnindexedTracks   int64   `json:"unindexed_tracks"`
	TotalFingerprints int64   `json:"total_fingerprints"`
	AvgPerTrack       float64 `json:"avg_fingerprints_per_track"`
}
