package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/fingerprint"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/model"
)

const DefaultDBFile = "jukebox.sqlite3"

var errClientNil = errors.New("storage client is nil")

// Client is the SQLite-backed fingerprint store. One file holds the track
// catalog, the hash postings, and the per-track index status.
type Client struct {
	DB *gorm.DB
	db *sql.DB
}

type trackRow struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Path        string `gorm:"uniqueIndex:idx_track_path"`
	Title       string
	Artist      string
	DurationMs  int
	ContentHash string
	CreatedAt   time.Time
}

func (trackRow) TableName() string { return "tracks" }

type fingerprintRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Hash         uint32 `gorm:"index:idx_fp_hash"`
	TrackID      string `gorm:"type:varchar(36);index:idx_fp_track"`
	AnchorTimeMs uint32
}

func (fingerprintRow) TableName() string { return "fingerprints" }

// indexStatusRow marks a fully committed index pass for a track. Its
// presence (with a matching content hash) is the resume check.
type indexStatusRow struct {
	TrackID          string `gorm:"primaryKey;type:varchar(36)"`
	ContentHash      string
	FingerprintCount int
	IndexedAt        time.Time
}

func (indexStatusRow) TableName() string { return "index_status" }

// Open creates or opens the SQLite store at dbPath and migrates the schema.
func Open(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&trackRow{}, &fingerprintRow{}, &indexStatusRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Client{DB: db, db: sqlDB}, nil
}

func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterTrack upserts a track by its path. New tracks get a UUID; for
// known paths the existing id is kept and copied back into track. A changed
// content hash invalidates the track's index status so it gets re-indexed.
func (c *Client) RegisterTrack(track *model.Track) error {
	if c == nil || c.DB == nil {
		return errClientNil
	}

	var existing trackRow
	err := c.DB.Where("path = ?", track.Path).First(&existing).Error
	if err == nil {
		track.ID = existing.ID
		track.CreatedAt = existing.CreatedAt
		if existing.ContentHash == track.ContentHash {
			return nil
		}
		return c.DB.Transaction(func(tx *gorm.DB) error {
			updates := map[string]any{
				"title":        track.Title,
				"artist":       track.Artist,
				"duration_ms":  track.DurationMs,
				"content_hash": track.ContentHash,
			}
			if err := tx.Model(&trackRow{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("updating track: %w", err)
			}
			if err := tx.Where("track_id = ?", existing.ID).Delete(&indexStatusRow{}).Error; err != nil {
				return fmt.Errorf("invalidating index status: %w", err)
			}
			return nil
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("querying existing track: %w", err)
	}

	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	row := trackRow{
		ID:          track.ID,
		Path:        track.Path,
		Title:       track.Title,
		Artist:      track.Artist,
		DurationMs:  track.DurationMs,
		ContentHash: track.ContentHash,
	}
	if err := c.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("creating track: %w", err)
	}
	track.CreatedAt = row.CreatedAt
	return nil
}

func toTrack(r trackRow) model.Track {
	return model.Track{
		ID:          r.ID,
		Path:        r.Path,
		Title:       r.Title,
		Artist:      r.Artist,
		DurationMs:  r.DurationMs,
		ContentHash: r.ContentHash,
		CreatedAt:   r.CreatedAt,
	}
}

func (c *Client) TrackByID(id string) (*model.Track, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	var row trackRow
	if err := c.DB.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrTrackNotFound
		}
		return nil, fmt.Errorf("querying track %s: %w", id, err)
	}
	t := toTrack(row)
	return &t, nil
}

func (c *Client) TrackByPath(path string) (*model.Track, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	var row trackRow
	if err := c.DB.Where("path = ?", path).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrTrackNotFound
		}
		return nil, fmt.Errorf("querying track by path: %w", err)
	}
	t := toTrack(row)
	return &t, nil
}

// Tracks lists registered tracks ordered by path. limit <= 0 means all.
func (c *Client) Tracks(limit int) ([]model.Track, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	q := c.DB.Order("path")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []trackRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	out := make([]model.Track, len(rows))
	for i, r := range rows {
		out[i] = toTrack(r)
	}
	return out, nil
}

// TracksToIndex lists tracks with no valid index status: never indexed, or
// re-registered with changed content. limit <= 0 means all.
func (c *Client) TracksToIndex(limit int) ([]model.Track, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	q := c.DB.
		Joins("LEFT JOIN index_status ON index_status.track_id = tracks.id").
		Where("index_status.track_id IS NULL").
		Order("tracks.path")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []trackRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing unindexed tracks: %w", err)
	}
	out := make([]model.Track, len(rows))
	for i, r := range rows {
		out[i] = toTrack(r)
	}
	return out, nil
}

func (c *Client) IsIndexed(trackID string) (bool, error) {
	if c == nil || c.DB == nil {
		return false, errClientNil
	}
	var count int64
	if err := c.DB.Model(&indexStatusRow{}).Where("track_id = ?", trackID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("querying index status: %w", err)
	}
	return count > 0, nil
}

// SaveTrackFingerprints replaces the track's postings in one transaction:
// prior rows are deleted, the new pairs inserted in batches, and the index
// status upserted. Re-running it for the same track is idempotent, and a
// cancelled indexing worker that never reaches it leaves no trace.
func (c *Client) SaveTrackFingerprints(trackID string, pairs []fingerprint.Pair) error {
	if c == nil || c.DB == nil {
		return errClientNil
	}

	var track trackRow
	if err := c.DB.Where("id = ?", trackID).First(&track).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrTrackNotFound
		}
		return fmt.Errorf("querying track %s: %w", trackID, err)
	}

	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&fingerprintRow{}).Error; err != nil {
			return fmt.Errorf("deleting prior fingerprints: %w", err)
		}

		rows := make([]fingerprintRow, len(pairs))
		for i, p := range pairs {
			rows[i] = fingerprintRow{Hash: p.Hash, TrackID: trackID, AnchorTimeMs: p.AnchorTimeMs}
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return fmt.Errorf("batch insert fingerprints: %w", err)
			}
		}

		status := indexStatusRow{
			TrackID:          trackID,
			ContentHash:      track.ContentHash,
			FingerprintCount: len(pairs),
			IndexedAt:        time.Now(),
		}
		if err := tx.Save(&status).Error; err != nil {
			return fmt.Errorf("upserting index status: %w", err)
		}
		return nil
	})
}

// DeleteTrackFingerprints drops the track's postings and index status,
// keeping the catalog entry.
func (c *Client) DeleteTrackFingerprints(trackID string) error {
	if c == nil || c.DB == nil {
		return errClientNil
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&fingerprintRow{}).Error; err != nil {
			return err
		}
		return tx.Where("track_id = ?", trackID).Delete(&indexStatusRow{}).Error
	})
}

// CouplesByHashes bulk-resolves hash buckets. Hashes with no postings are
// simply absent from the result.
func (c *Client) CouplesByHashes(hashes []uint32) (map[uint32][]model.Couple, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	result := make(map[uint32][]model.Couple)
	if len(hashes) == 0 {
		return result, nil
	}

	// SQLite caps bound parameters per statement; chunk the IN list.
	const chunkSize = 900
	for start := 0; start < len(hashes); start += chunkSize {
		end := start + chunkSize
		if end > len(hashes) {
			end = len(hashes)
		}
		var rows []fingerprintRow
		if err := c.DB.Where("hash IN ?", hashes[start:end]).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("batch querying fingerprints: %w", err)
		}
		for _, r := range rows {
			result[r.Hash] = append(result[r.Hash], model.Couple{
				TrackID:      r.TrackID,
				AnchorTimeMs: r.AnchorTimeMs,
			})
		}
	}
	return result, nil
}

// ClearFingerprints wipes all postings and index status, keeping the track
// catalog.
func (c *Client) ClearFingerprints() error {
	if c == nil || c.DB == nil {
		return errClientNil
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&fingerprintRow{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&indexStatusRow{}).Error
	})
}

func (c *Client) Stats() (*model.StoreStats, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}

	var stats model.StoreStats
	if err := c.DB.Model(&trackRow{}).Count(&stats.TotalTracks).Error; err != nil {
		return nil, fmt.Errorf("counting tracks: %w", err)
	}
	if err := c.DB.Model(&indexStatusRow{}).Count(&stats.IndexedTracks).Error; err != nil {
		return nil, fmt.Errorf("counting indexed tracks: %w", err)
	}
	if err := c.DB.Model(&fingerprintRow{}).Count(&stats.TotalFingerprints).Error; err != nil {
		return nil, fmt.Errorf("counting fingerprints: %w", err)
	}
	stats.UnindexedTracks = stats.TotalTracks - stats.IndexedTracks
	if stats.IndexedTracks > 0 {
		stats.AvgPerTrack = float64(stats.TotalFingerprints) / float64(stats.IndexedTracks)
	}
	return &stats, nil
}
