package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/fingerprint"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/model"
)

// Memory is an in-process fingerprint store with the same contract as the
// SQLite client. Used by tests and ephemeral analysis runs.
type Memory struct {
	mu      sync.RWMutex
	tracks  map[string]model.Track          // id -> track
	byPath  map[string]string               // path -> id
	buckets map[uint32][]model.Couple       // hash -> postings
	byTrack map[string][]fingerprint.Pair   // id -> pairs, for replace
	status  map[string]int                  // id -> stored pair count
}

func NewMemory() *Memory {
	return &Memory{
		tracks:  make(map[string]model.Track),
		byPath:  make(map[string]string),
		buckets: make(map[uint32][]model.Couple),
		byTrack: make(map[string][]fingerprint.Pair),
		status:  make(map[string]int),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) RegisterTrack(track *model.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byPath[track.Path]; ok {
		existing := m.tracks[id]
		track.ID = id
		track.CreatedAt = existing.CreatedAt
		if existing.ContentHash != track.ContentHash {
			m.tracks[id] = *track
			delete(m.status, id)
		}
		return nil
	}

	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	track.CreatedAt = time.Now()
	m.tracks[track.ID] = *track
	m.byPath[track.Path] = track.ID
	return nil
}

func (m *Memory) TrackByID(id string) (*model.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tracks[id]
	if !ok {
		return nil, model.ErrTrackNotFound
	}
	return &t, nil
}

func (m *Memory) TrackByPath(path string) (*model.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPath[path]
	if !ok {
		return nil, model.ErrTrackNotFound
	}
	t := m.tracks[id]
	return &t, nil
}

func (m *Memory) Tracks(limit int) ([]model.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(limit, func(string) bool { return true }), nil
}

func (m *Memory) TracksToIndex(limit int) ([]model.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(limit, func(id string) bool {
		_, indexed := m.status[id]
		return !indexed
	}), nil
}

func (m *Memory) listLocked(limit int, keep func(id string) bool) []model.Track {
	out := make([]model.Track, 0, len(m.tracks))
	for id, t := range m.tracks {
		if keep(id) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *Memory) IsIndexed(trackID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.status[trackID]
	return ok, nil
}

func (m *Memory) SaveTrackFingerprints(trackID string, pairs []fingerprint.Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tracks[trackID]; !ok {
		return model.ErrTrackNotFound
	}

	m.removePostingsLocked(trackID)
	for _, p := range pairs {
		m.buckets[p.Hash] = append(m.buckets[p.Hash], model.Couple{
			TrackID:      trackID,
			AnchorTimeMs: p.AnchorTimeMs,
		})
	}
	m.byTrack[trackID] = append([]fingerprint.Pair(nil), pairs...)
	m.status[trackID] = len(pairs)
	return nil
}

func (m *Memory) removePostingsLocked(trackID string) {
	for _, p := range m.byTrack[trackID] {
		bucket := m.buckets[p.Hash]
		kept := bucket[:0]
		for _, c := range bucket {
			if c.TrackID != trackID {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(m.buckets, p.Hash)
		} else {
			m.buckets[p.Hash] = kept
		}
	}
	delete(m.byTrack, trackID)
	delete(m.status, trackID)
}

func (m *Memory) DeleteTrackFingerprints(trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removePostingsLocked(trackID)
	return nil
}

func (m *Memory) CouplesByHashes(hashes []uint32) (map[uint32][]model.Couple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[uint32][]model.Couple)
	for _, h := range hashes {
		if bucket, ok := m.buckets[h]; ok {
			result[h] = append([]model.Couple(nil), bucket...)
		}
	}
	return result, nil
}

func (m *Memory) ClearFingerprints() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = make(map[uint32][]model.Couple)
	m.byTrack = make(map[string][]fingerprint.Pair)
	m.status = make(map[string]int)
	return nil
}

func (m *Memory) Stats() (*model.StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := model.StoreStats{
		TotalTracks:   int64(len(m.tracks)),
		IndexedTracks: int64(len(m.status)),
	}
	for _, count := range m.status {
		stats.TotalFingerprints += int64(count)
	}
	stats.UnindexedTracks = stats.TotalTracks - stats.IndexedTracks
	if stats.IndexedTracks > 0 {
		stats.AvgPerTrack = float64(stats.TotalFingerprints) / float64(stats.IndexedTracks)
	}
	return &stats, nil
}
